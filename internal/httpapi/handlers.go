package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danmuck/spikectl/internal/authority"
	"github.com/danmuck/spikectl/internal/chain"
	"github.com/danmuck/spikectl/internal/config"
	"github.com/danmuck/spikectl/internal/pool"
	"github.com/danmuck/spikectl/internal/spiker"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
)

var errBadRequest = errors.New("httpapi: bad request")

type proposeRequest struct {
	Caller  string `json:"caller"`
	Pending string `json:"pending"`
}

type acceptRequest struct {
	Caller string `json:"caller"`
}

// spikeRequest amounts are base-10 strings.
type spikeRequest struct {
	Caller    string   `json:"caller"`
	NewBasis  string   `json:"new_basis"`
	DepositsA []string `json:"deposits_a"`
	DepositsB []string `json:"deposits_b"`
	TotalA    string   `json:"total_a"`
	TotalB    string   `json:"total_b"`
}

type settleRequest struct {
	Caller      string `json:"caller"`
	Beneficiary string `json:"beneficiary"`
}

func (s *Server) handlePool(c *gin.Context) {
	c.JSON(http.StatusOK, s.stack.PoolState())
}

func (s *Server) handleNotes(c *gin.Context) {
	owner, err := parseAccount(c.Param("owner"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"owner": owner, "notes": s.stack.Notes(owner)})
}

func (s *Server) handlePropose(c *gin.Context) {
	var req proposeRequest
	if !s.bind(c, &req) {
		return
	}
	caller, err := parseAccount(req.Caller)
	if err != nil {
		s.fail(c, err)
		return
	}
	pending, err := parseAccount(req.Pending)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.stack.ProposeController(caller, pending); err != nil {
		s.fail(c, err)
		return
	}
	s.syncEvents(c.Request.Context())
	c.JSON(http.StatusOK, s.stack.PoolState())
}

func (s *Server) handleAccept(c *gin.Context) {
	var req acceptRequest
	if !s.bind(c, &req) {
		return
	}
	caller, err := parseAccount(req.Caller)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.stack.AcceptController(caller); err != nil {
		s.fail(c, err)
		return
	}
	s.syncEvents(c.Request.Context())
	c.JSON(http.StatusOK, s.stack.PoolState())
}

func (s *Server) handleSpike(c *gin.Context) {
	var body spikeRequest
	if !s.bind(c, &body) {
		return
	}
	caller, err := parseAccount(body.Caller)
	if err != nil {
		s.fail(c, err)
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	receipt, err := s.stack.Spiker.SpikeAndDeposit(ctx, caller, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := gin.H{"receipt": receipt}
	if s.journal != nil {
		id, err := s.journal.RecordSpike(ctx, receipt)
		if err != nil {
			s.logger.Error().Err(err).Msg("journal spike failed")
		} else {
			resp["journal_id"] = id
		}
	}
	s.syncEvents(ctx)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSettle(c *gin.Context) {
	var body settleRequest
	if !s.bind(c, &body) {
		return
	}
	caller, err := parseAccount(body.Caller)
	if err != nil {
		s.fail(c, err)
		return
	}
	beneficiary, err := parseAccount(body.Beneficiary)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	report, err := s.stack.Spiker.WithdrawAll(ctx, caller, beneficiary)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := gin.H{"report": report, "complete": report.Complete()}
	if s.journal != nil {
		id, err := s.journal.RecordSettlement(ctx, report, s.stack.Now())
		if err != nil {
			s.logger.Error().Err(err).Msg("journal settlement failed")
		} else {
			resp["journal_id"] = id
		}
	}
	s.syncEvents(ctx)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListSpikes(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}
	entries, err := s.journal.ListSpikes(c.Request.Context(), queryLimit(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spikes": entries})
}

func (s *Server) handleListSettlements(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}
	entries, err := s.journal.ListSettlements(c.Request.Context(), queryLimit(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settlements": entries})
}

func (s *Server) bind(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func (s *Server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	_ = c.Error(err)
	c.JSON(status, gin.H{
		"error": err.Error(),
		"class": string(spiker.Classify(err)),
	})
}

// StatusFor maps a call failure onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, spiker.ErrNotController):
		return http.StatusConflict
	case errors.Is(err, spiker.ErrUnauthorized),
		errors.Is(err, authority.ErrNotController),
		errors.Is(err, authority.ErrNotPending),
		errors.Is(err, pool.ErrNotController):
		return http.StatusForbidden
	}
	switch spiker.Classify(err) {
	case spiker.ClassPrecondition:
		return http.StatusBadRequest
	case spiker.ClassArithmetic:
		return http.StatusUnprocessableEntity
	case spiker.ClassResource:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (r spikeRequest) toRequest() (spiker.SpikeRequest, error) {
	var (
		out spiker.SpikeRequest
		err error
	)
	if out.NewBasis, err = parseAmount("new_basis", r.NewBasis); err != nil {
		return out, err
	}
	if out.TotalA, err = parseAmount("total_a", r.TotalA); err != nil {
		return out, err
	}
	if out.TotalB, err = parseAmount("total_b", r.TotalB); err != nil {
		return out, err
	}
	if out.DepositsA, err = parseAmounts("deposits_a", r.DepositsA); err != nil {
		return out, err
	}
	if out.DepositsB, err = parseAmounts("deposits_b", r.DepositsB); err != nil {
		return out, err
	}
	return out, nil
}

func parseAmount(field, raw string) (*uint256.Int, error) {
	v, err := config.ParseAmount(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return v, nil
}

func parseAmounts(field string, raw []string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(raw))
	for i, v := range raw {
		amt, err := parseAmount(fmt.Sprintf("%s[%d]", field, i), v)
		if err != nil {
			return nil, err
		}
		out[i] = amt
	}
	return out, nil
}

func parseAccount(raw string) (chain.Address, error) {
	if raw == "" {
		return chain.ZeroAddress, fmt.Errorf("%w: missing account", errBadRequest)
	}
	return config.ResolveAccount(raw), nil
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		return 20
	}
	return limit
}
