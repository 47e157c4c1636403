// Package marketd exposes the money market host over HTTP.
package marketd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"moneymarket/core"
	"moneymarket/core/types"
	"moneymarket/crypto"
	"moneymarket/native/market"
)

const (
	moduleName   = "market"
	requestLimit = 1 << 20 // 1 MiB
)

// Service is the host surface the HTTP API drives.
type Service interface {
	Deposit(ctx context.Context, sender crypto.HumanAddress, funds types.Coins) (*market.Response, error)
	Redeem(ctx context.Context, sender crypto.HumanAddress, amount *uint256.Int) (*market.Response, error)
	State() (*market.State, error)
	Config() (*market.Config, error)
	EpochState(ctx context.Context) (*market.EpochState, error)
	Balance(ctx context.Context, addr crypto.HumanAddress, denom string) (*uint256.Int, error)
	TokenBalance(holder crypto.HumanAddress) (*uint256.Int, error)
	SetHeight(height uint64) error
	Height() uint64
}

// Server routes HTTP requests to the market host.
type Server struct {
	svc     Service
	limiter *RateLimiter
	logger  *slog.Logger
	timeout time.Duration
}

// NewServer wires the API. A nil limiter disables throttling.
func NewServer(svc Service, limiter *RateLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:     svc,
		limiter: limiter,
		logger:  logger.With("component", "marketd"),
		timeout: 10 * time.Second,
	}
}

// Handler returns the routed API, /metrics included.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1/market", func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Post("/deposit", observe(s.logger, "deposit", s.deposit))
		r.Post("/redeem", observe(s.logger, "redeem", s.redeem))
		r.Get("/state", observe(s.logger, "state", s.state))
		r.Get("/config", observe(s.logger, "config", s.config))
		r.Get("/epoch", observe(s.logger, "epoch", s.epoch))
		r.Get("/balance/{address}/{denom}", observe(s.logger, "balance", s.balance))
		r.Get("/shares/{address}", observe(s.logger, "shares", s.shares))
		r.Post("/blocks", observe(s.logger, "blocks", s.blocks))
	})
	return r
}

type coinJSON struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type depositRequest struct {
	Sender string     `json:"sender"`
	Coins  []coinJSON `json:"coins"`
}

type redeemRequest struct {
	Sender string `json:"sender"`
	Amount string `json:"amount"`
}

type blocksRequest struct {
	Height uint64 `json:"height"`
}

type commandJSON struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Denom     string `json:"denom,omitempty"`
	Amount    string `json:"amount"`
}

type eventJSON struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type callResponse struct {
	RequestID string        `json:"request_id"`
	Height    uint64        `json:"height"`
	Commands  []commandJSON `json:"commands"`
	Events    []eventJSON   `json:"events"`
}

type stateResponse struct {
	Height              uint64 `json:"height"`
	TotalLiabilities    string `json:"total_liabilities"`
	TotalReserves       string `json:"total_reserves"`
	PrevReceiptSupply   string `json:"prev_receipt_supply"`
	LastInterestUpdated uint64 `json:"last_interest_updated"`
	GlobalInterestIndex string `json:"global_interest_index"`
}

type configResponse struct {
	StableDenom  string `json:"stable_denom"`
	ReceiptToken string `json:"receipt_token"`
	Contract     string `json:"contract"`
}

type epochResponse struct {
	Height        uint64 `json:"height"`
	ExchangeRate  string `json:"exchange_rate"`
	ReceiptSupply string `json:"receipt_supply"`
}

type balanceResponse struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
	Amount  string `json:"amount"`
}

func (s *Server) context(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := s.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeRequest(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	sender, err := resolveAddress(req.Sender)
	if err != nil {
		s.writeCallError(w, r, "deposit", err)
		return
	}
	funds := make(types.Coins, 0, len(req.Coins))
	for _, c := range req.Coins {
		amount, err := parseAmount(c.Amount)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		funds = append(funds, types.NewCoin(c.Denom, amount))
	}

	ctx, cancel := s.context(r.Context())
	defer cancel()
	resp, err := s.svc.Deposit(ctx, sender, funds)
	if err != nil {
		s.writeCallError(w, r, "deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, s.callResponse(r, resp))
}

func (s *Server) redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeRequest(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	sender, err := resolveAddress(req.Sender)
	if err != nil {
		s.writeCallError(w, r, "redeem", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := s.context(r.Context())
	defer cancel()
	resp, err := s.svc.Redeem(ctx, sender, amount)
	if err != nil {
		s.writeCallError(w, r, "redeem", err)
		return
	}
	writeJSON(w, http.StatusOK, s.callResponse(r, resp))
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.State()
	if err != nil {
		s.writeCallError(w, r, "state", err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{
		Height:              s.svc.Height(),
		TotalLiabilities:    state.TotalLiabilities.String(),
		TotalReserves:       state.TotalReserves.String(),
		PrevReceiptSupply:   state.PrevReceiptSupply.Dec(),
		LastInterestUpdated: state.LastInterestUpdated,
		GlobalInterestIndex: state.GlobalInterestIndex.String(),
	})
}

func (s *Server) config(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.Config()
	if err != nil {
		s.writeCallError(w, r, "config", err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{
		StableDenom:  cfg.StableDenom,
		ReceiptToken: cfg.ReceiptToken.String(),
		Contract:     cfg.Contract.String(),
	})
}

func (s *Server) epoch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r.Context())
	defer cancel()
	epoch, err := s.svc.EpochState(ctx)
	if err != nil {
		s.writeCallError(w, r, "epoch", err)
		return
	}
	writeJSON(w, http.StatusOK, epochResponse{
		Height:        s.svc.Height(),
		ExchangeRate:  epoch.ExchangeRate.String(),
		ReceiptSupply: epoch.ReceiptSupply.Dec(),
	})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	addr, err := resolveAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeCallError(w, r, "balance", err)
		return
	}
	denom := chi.URLParam(r, "denom")
	amount, err := s.svc.Balance(r.Context(), addr, denom)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: string(addr), Denom: denom, Amount: amount.Dec()})
}

func (s *Server) shares(w http.ResponseWriter, r *http.Request) {
	addr, err := resolveAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeCallError(w, r, "shares", err)
		return
	}
	amount, err := s.svc.TokenBalance(addr)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: string(addr), Denom: "receipt", Amount: amount.Dec()})
}

func (s *Server) blocks(w http.ResponseWriter, r *http.Request) {
	var req blocksRequest
	if err := decodeRequest(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.SetHeight(req.Height); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrHeightRegression) {
			status = http.StatusBadRequest
		}
		writeJSONError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, blocksRequest{Height: s.svc.Height()})
}

func (s *Server) callResponse(r *http.Request, resp *market.Response) callResponse {
	out := callResponse{
		RequestID: requestIDFrom(r.Context()),
		Height:    s.svc.Height(),
		Commands:  make([]commandJSON, 0, len(resp.Commands)),
		Events:    make([]eventJSON, 0, len(resp.Events)),
	}
	for _, cmd := range resp.Commands {
		out.Commands = append(out.Commands, renderCommand(cmd))
	}
	for _, ev := range resp.Events {
		out.Events = append(out.Events, eventJSON{Type: ev.Type, Attributes: ev.Attributes})
	}
	return out
}

func renderCommand(cmd market.Command) commandJSON {
	switch c := cmd.(type) {
	case market.MintCommand:
		return commandJSON{Type: c.CommandType(), Token: string(c.Token), Recipient: string(c.Recipient), Amount: c.Amount.Dec()}
	case market.BurnCommand:
		return commandJSON{Type: c.CommandType(), Token: string(c.Token), Amount: c.Amount.Dec()}
	case market.TransferCommand:
		return commandJSON{Type: c.CommandType(), From: string(c.From), To: string(c.To), Denom: c.Coin.Denom, Amount: c.Coin.Amount.Dec()}
	default:
		return commandJSON{Type: cmd.CommandType()}
	}
}

// statusFor maps market error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch market.ErrorKind(err) {
	case market.KindInvalidInput, market.KindAddressResolution:
		return http.StatusBadRequest
	case market.KindInsufficientLiquidity:
		return http.StatusConflict
	case market.KindUpstreamQuery:
		return http.StatusBadGateway
	default:
		if errors.Is(err, market.ErrNotInitialised) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}

func (s *Server) writeCallError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("market call failed", "op", op, "error", err, "request_id", requestIDFrom(r.Context()))
	}
	writeJSONError(w, status, err.Error())
}

func decodeRequest(r *http.Request, out interface{}) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, requestLimit+1))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) > requestLimit {
		return errors.New("request body too large")
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// resolveAddress accepts only addresses that resolve to a canonical form.
func resolveAddress(raw string) (crypto.HumanAddress, error) {
	human := crypto.HumanAddress(strings.TrimSpace(raw))
	if _, err := human.Canonical(); err != nil {
		return "", err
	}
	return human, nil
}

func parseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}
