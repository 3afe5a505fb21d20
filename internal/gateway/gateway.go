// Package gateway implements the Request Gateway (spec.md §4.7): rate
// limiting, idempotency, request validation, and response assembly in
// front of the Verifier and Settler, exposed over gin.
//
// HTTP wiring style (gin.H responses, c.AbortWithStatusJSON) is
// grounded on the teacher's pkg/gin/middleware.go PaymentMiddleware,
// the only gin-based HTTP surface in the teacher repo.
package gateway

import (
	"context"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evmrelay/x402-facilitator/internal/config"
	"github.com/evmrelay/x402-facilitator/internal/fee"
	"github.com/evmrelay/x402-facilitator/internal/metrics"
	"github.com/evmrelay/x402-facilitator/internal/registry"
	"github.com/evmrelay/x402-facilitator/internal/settler"
	"github.com/evmrelay/x402-facilitator/internal/verifier"
	"github.com/evmrelay/x402-facilitator/internal/x402err"
)

// Gateway wires the facilitator's HTTP surface to its settlement
// engine, owning rate limiting and idempotency as cross-cutting
// pre-handlers for /verify and /settle only (spec.md §4.7).
type Gateway struct {
	registry    *registry.Registry
	verifier    *verifier.Verifier
	settler     *settler.Settler
	cfg         *config.Config
	log         *zap.Logger
	rateLimiter *RateLimiter
	idempotency IdempotencyStore
}

// New builds a Gateway bound to its collaborators.
func New(reg *registry.Registry, v *verifier.Verifier, s *settler.Settler, cfg *config.Config, log *zap.Logger) *Gateway {
	return &Gateway{
		registry:    reg,
		verifier:    v,
		settler:     s,
		cfg:         cfg,
		log:         log,
		rateLimiter: NewRateLimiter(cfg.RateLimitPerWindow, time.Duration(cfg.RateLimitWindowSeconds)*time.Second),
		idempotency: NewInMemoryIdempotencyStore(time.Duration(cfg.IdempotencyTTLSeconds) * time.Second),
	}
}

// RegisterRoutes binds the facilitator's five routes (spec.md §6) onto
// router.
func (g *Gateway) RegisterRoutes(router *gin.Engine) {
	router.Use(g.countRequest)
	router.GET("/api/info", g.handleInfo)
	router.GET("/health", g.handleHealth)
	router.GET("/supported", g.handleSupported)
	router.POST("/verify", g.rateLimit, g.idempotent("/verify"), g.handleVerify)
	router.POST("/settle", g.rateLimit, g.idempotent("/settle"), g.handleSettle)
}

// countRequest records a facilitator_requests_total observation per
// route once the handler chain completes.
func (g *Gateway) countRequest(c *gin.Context) {
	c.Next()
	outcome := "ok"
	if c.Writer.Status() >= http.StatusBadRequest {
		outcome = "error"
	}
	metrics.RequestsTotal.WithLabelValues(c.FullPath(), outcome).Inc()
}

func clientID(c *gin.Context) string {
	if key := c.GetHeader("X-Client-Id"); key != "" {
		return key
	}
	return c.ClientIP()
}

// rateLimit is the fixed-window pre-handler of spec.md §4.7.
func (g *Gateway) rateLimit(c *gin.Context) {
	if !g.rateLimiter.Allow(clientID(c)) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded",
			"code":  string(x402err.CodeRateLimited),
		})
		return
	}
	c.Next()
}

// idempotent is the idempotency pre-handler: on a cache hit within
// TTL it replies with the cached body and suppresses the downstream
// handler; otherwise it lets the request through and stashes the
// derived fingerprint (and the idempotency key header override) on the
// context for the handler to store its response under, before
// emitting the reply.
func (g *Gateway) idempotent(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body", "code": string(x402err.CodeInvalidHeader)})
			return
		}
		c.Set("rawBody", body)

		raw, err := decodeRawRequest(body)
		if err != nil {
			c.Set("decodeErr", err)
			c.Next()
			return
		}

		fp := Fingerprint(
			route,
			c.GetHeader("Idempotency-Key"),
			nonceOf(raw.PaymentHeader),
			raw.PaymentRequirements.Resource,
			raw.PaymentRequirements.PayTo,
			raw.PaymentRequirements.MaxAmountRequired,
			raw.PaymentRequirements.Network,
		)
		c.Set("fingerprint", fp)
		c.Set("rawRequest", raw)

		if cached, ok := g.idempotency.Get(fp); ok {
			c.JSON(cached.Status, cached.Body)
			c.Abort()
			return
		}

		c.Set("stableTimestamp", stableTimestampNow())
		c.Next()
	}
}

// storeIdempotent persists resp under the fingerprint stashed by the
// idempotent pre-handler, before the handler returns the response to
// the client, per spec.md §4.7's ordering requirement.
func (g *Gateway) storeIdempotent(c *gin.Context, status int, body map[string]interface{}) {
	fp, ok := c.Get("fingerprint")
	if !ok {
		return
	}
	ts, _ := body["timestamp"].(string)
	g.idempotency.Put(fp.(string), CachedResponse{Status: status, Body: body, StableTimestamp: ts})
}

func (g *Gateway) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"facilitatorMode": string(g.cfg.FacilitatorMode),
		"defaultChain":    g.cfg.DefaultChain,
		"networks":        g.registry.SupportedNetworks(),
	})
}

func (g *Gateway) handleHealth(c *gin.Context) {
	networks := map[string]interface{}{}
	healthy := true

	for _, slug := range g.registry.SupportedNetworks() {
		entry := map[string]interface{}{}
		client, err := g.registry.PublicClient(slug)
		if err != nil {
			healthy = false
			entry["rpcHealthy"] = false
			entry["status"] = "error"
			entry["error"] = err.Error()
			networks[slug] = entry
			continue
		}

		ctx, cancel := contextWithTimeout(c, 5*time.Second)
		_, err = client.BlockNumber(ctx)
		cancel()

		entry["token"] = g.registry.SupportedAssets(slug)
		if err != nil {
			healthy = false
			entry["rpcHealthy"] = false
			entry["status"] = "error"
			entry["error"] = err.Error()
		} else {
			entry["rpcHealthy"] = true
			entry["status"] = "ok"
		}
		networks[slug] = entry
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"healthy":         healthy,
		"facilitatorMode": string(g.cfg.FacilitatorMode),
		"networks":        networks,
		"timestamp":       stableTimestampNow(),
	})
}

func (g *Gateway) handleSupported(c *gin.Context) {
	kinds := []gin.H{}
	for _, network := range g.registry.SupportedNetworks() {
		kinds = append(kinds, gin.H{
			"x402Version": 1,
			"scheme":      "exact",
			"network":     network,
		})
	}
	c.JSON(http.StatusOK, gin.H{"kinds": kinds})
}

func (g *Gateway) handleVerify(c *gin.Context) {
	raw, timestamp, ok := g.loadValidated(c, validateVerifyRequest, x402err.Code("VERIFICATION_ERROR"))
	if !ok {
		return
	}

	result, err := g.verifier.Verify(c.Request.Context(), verifier.Request{
		Network:           raw.PaymentRequirements.Network,
		Asset:             raw.PaymentRequirements.Asset,
		PayTo:             raw.PaymentRequirements.PayTo,
		MaxAmountRequired: raw.PaymentRequirements.MaxAmountRequired,
		PaymentHeader:     raw.PaymentHeader,
	})
	if err != nil {
		g.respondError(c, err)
		return
	}

	breakdown := g.feeBreakdownFor(raw.PaymentRequirements.Network, raw.PaymentRequirements.Asset, raw.PaymentRequirements.MaxAmountRequired, result.Decimals)

	body := map[string]interface{}{
		"isValid":       result.IsValid,
		"invalidReason": nilIfEmpty(result.InvalidReason),
		"reportId":      reportID(timestamp),
		"timestamp":     timestamp,
	}
	if result.IsValid {
		body["consensusProof"] = consensusProof(raw.PaymentRequirements.Network, raw.PaymentRequirements.PayTo, nonceOf(raw.PaymentHeader), timestamp)
	} else {
		body["consensusProof"] = nil
	}
	for k, v := range feeBreakdownJSON(breakdown) {
		body[k] = v
	}

	g.storeIdempotent(c, http.StatusOK, body)
	c.JSON(http.StatusOK, body)
}

func (g *Gateway) handleSettle(c *gin.Context) {
	raw, timestamp, ok := g.loadValidated(c, validateSettleRequest, x402err.CodeSettlement)
	if !ok {
		return
	}

	outcome, err := g.settler.Settle(c.Request.Context(), settler.Request{
		Network:           raw.PaymentRequirements.Network,
		Asset:             raw.PaymentRequirements.Asset,
		PayTo:             raw.PaymentRequirements.PayTo,
		MaxAmountRequired: raw.PaymentRequirements.MaxAmountRequired,
		PaymentHeader:     raw.PaymentHeader,
		AgentID:           raw.AgentID,
	})

	decimals := uint8(0)
	if t, terr := g.registry.TokenBySymbolOrAddress(raw.PaymentRequirements.Network, raw.PaymentRequirements.Asset); terr == nil {
		decimals = t.Decimals
	}
	breakdown := g.feeBreakdownFor(raw.PaymentRequirements.Network, raw.PaymentRequirements.Asset, raw.PaymentRequirements.MaxAmountRequired, decimals)

	body := map[string]interface{}{
		"networkId": raw.PaymentRequirements.Network,
		"timestamp": timestamp,
		"status":    string(outcome.Status),
		"txHash":    nilIfEmpty(outcome.TxHash),
	}
	if outcome.TxHashFee != "" {
		body["txHashFee"] = outcome.TxHashFee
	}
	if outcome.EvidenceHash != "" {
		body["evidenceHash"] = outcome.EvidenceHash
	}
	if outcome.ProofOfAgency != "" {
		body["proofOfAgency"] = outcome.ProofOfAgency
	}
	for k, v := range feeBreakdownJSON(breakdown) {
		body[k] = v
	}

	if err != nil {
		body["success"] = false
		body["error"] = err.Error()
		body["consensusProof"] = nil
		g.storeIdempotent(c, http.StatusOK, body)
		c.JSON(http.StatusOK, body)
		return
	}

	success := outcome.Status == settler.StatusConfirmed || outcome.Status == settler.StatusPending
	body["success"] = success
	if success {
		body["consensusProof"] = consensusProof(raw.PaymentRequirements.Network, raw.PaymentRequirements.PayTo, nonceOf(raw.PaymentHeader), timestamp)
	} else {
		body["consensusProof"] = nil
	}

	g.storeIdempotent(c, http.StatusOK, body)
	c.JSON(http.StatusOK, body)
}

// loadValidated re-decodes and validates the raw body stashed by the
// idempotent pre-handler, responding with 400 on any failure.
func (g *Gateway) loadValidated(c *gin.Context, validate func([]byte) error, code x402err.Code) (rawRequest, string, bool) {
	if decodeErr, ok := c.Get("decodeErr"); ok {
		g.badRequest(c, decodeErr.(error), code)
		return rawRequest{}, "", false
	}

	bodyVal, _ := c.Get("rawBody")
	body, _ := bodyVal.([]byte)
	if err := validate(body); err != nil {
		g.badRequest(c, err, code)
		return rawRequest{}, "", false
	}

	rawVal, ok := c.Get("rawRequest")
	if !ok {
		g.badRequest(c, errMissingRequest, code)
		return rawRequest{}, "", false
	}
	timestampVal, _ := c.Get("stableTimestamp")
	timestamp, _ := timestampVal.(string)
	if timestamp == "" {
		timestamp = stableTimestampNow()
	}
	return rawVal.(rawRequest), timestamp, true
}

func (g *Gateway) badRequest(c *gin.Context, err error, code x402err.Code) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "invalid request",
		"code":    string(code),
		"details": err.Error(),
	})
}

func (g *Gateway) respondError(c *gin.Context, err error) {
	if xerr, ok := x402err.As(err); ok {
		switch xerr.Code {
		case x402err.CodeRpc:
			c.JSON(http.StatusOK, gin.H{"isValid": false, "invalidReason": xerr.Error()})
			return
		case x402err.CodeNotSupported, x402err.CodeInvalidHeader, x402err.CodeSettlement:
			c.JSON(http.StatusBadRequest, gin.H{"error": xerr.Message, "code": string(xerr.Code)})
			return
		}
	}
	g.log.Error("gateway: unexpected error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": string(x402err.CodeInternal)})
}

func (g *Gateway) feeBreakdownFor(network, asset, maxAmountRequired string, decimals uint8) fee.Breakdown {
	amount, ok := new(big.Int).SetString(maxAmountRequired, 10)
	if !ok {
		amount = big.NewInt(0)
	}
	symbol := asset
	if t, err := g.registry.TokenBySymbolOrAddress(network, asset); err == nil {
		symbol = t.Symbol
		if decimals == 0 {
			decimals = t.Decimals
		}
	}
	return fee.Compute(amount, decimals, symbol, fee.DefaultFeeBps)
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func contextWithTimeout(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

var errMissingRequest = x402err.Internal(errRequestNotStashed{})

type errRequestNotStashed struct{}

func (errRequestNotStashed) Error() string { return "validated request not found on context" }
