package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

type handler struct {
	svc  Service
	opts Options
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// scanSport: GET /api/v1/value-bets/sport/{sport}
// Query: min_value, max_events, min_confidence, min_odds, max_odds, market_types, horizon, auto_create_alerts.
func (h *handler) scanSport(w http.ResponseWriter, r *http.Request) {
	sport := chi.URLParam(r, "sport")
	policy, err := h.policyFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}

	res, err := h.svc.ScanSport(r.Context(), sport, policy)
	if err != nil && (errors.Is(err, domain.ErrInvalidInput) || res.EventsScanned == 0) {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toScan(sport, res, err))
}

// scanAll: GET /api/v1/value-bets/scan-all?sports=a,b
func (h *handler) scanAll(w http.ResponseWriter, r *http.Request) {
	sports := splitList(r.URL.Query().Get("sports"))
	if len(sports) == 0 {
		sports = h.opts.Sports
	}
	if len(sports) == 0 {
		respondError(w, fmt.Errorf("no sports requested: %w", domain.ErrInvalidInput))
		return
	}
	policy, err := h.policyFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}

	res, err := h.svc.ScanAll(r.Context(), sports, policy)
	if err != nil && len(res.SportErrors) == len(sports) {
		respondError(w, err)
		return
	}

	out := scanAllJSON{
		Count:   len(res.Opportunities),
		BySport: make(map[string]int, len(res.BySport)),
	}
	ids := make(map[domain.AlertKey]string)
	for sport, sr := range res.BySport {
		out.BySport[sport] = len(sr.Opportunities)
		for k, v := range sr.AlertIDs {
			ids[k] = v
		}
	}
	out.ValueBets = toValueBets(res.Opportunities, ids)
	if len(res.SportErrors) > 0 {
		out.Errors = make(map[string][]string, len(res.SportErrors))
		for sport, serr := range res.SportErrors {
			out.Errors[sport] = errorStrings(serr)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

// findArbitrage: GET /api/v1/arbitrage/markets/{marketID}?stake=100
func (h *handler) findArbitrage(w http.ResponseWriter, r *http.Request) {
	stake, err := floatParam(r, "stake", h.opts.TotalStake)
	if err != nil {
		respondError(w, err)
		return
	}
	arb, err := h.svc.FindArbitrage(r.Context(), chi.URLParam(r, "marketID"), stake)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := map[string]any{"found": arb != nil, "arbitrage": nil}
	if arb != nil {
		resp["arbitrage"] = toArbitrage(*arb)
	}
	respondJSON(w, http.StatusOK, resp)
}

// scanArbitrage: GET /api/v1/arbitrage/sport/{sport}?min_profit_margin=0.01&stake=100&limit=10
func (h *handler) scanArbitrage(w http.ResponseWriter, r *http.Request) {
	sport := chi.URLParam(r, "sport")
	minMargin, err := floatParam(r, "min_profit_margin", h.opts.MinProfitMargin)
	if err != nil {
		respondError(w, err)
		return
	}
	stake, err := floatParam(r, "stake", h.opts.TotalStake)
	if err != nil {
		respondError(w, err)
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		respondError(w, err)
		return
	}

	arbs, err := h.svc.ScanArbitrage(r.Context(), sport, minMargin, stake, limit)
	if err != nil && len(arbs) == 0 {
		respondError(w, err)
		return
	}
	out := make([]arbitrageJSON, 0, len(arbs))
	for _, a := range arbs {
		out = append(out, toArbitrage(a))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sport":     sport,
		"arbitrage": out,
		"count":     len(out),
		"errors":    errorStrings(err),
	})
}

// statistics: GET /api/v1/statistics/{userID}?period=monthly&group_by=sport
func (h *handler) statistics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	period := domain.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = domain.PeriodAllTime
	}
	groupBy, err := domain.ParseGroupBy(r.URL.Query().Get("group_by"))
	if err != nil {
		respondError(w, err)
		return
	}

	stats, err := h.svc.GetStatistics(r.Context(), userID, period, groupBy)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toStatistics(userID, period, stats))
}

// alertSummary: GET /api/v1/alerts/summary
func (h *handler) alertSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.AlertSummary(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, alertSummaryJSON(s))
}

type takenRequest struct {
	ExternalBetID string `json:"external_bet_id"`
}

// markTaken: POST /api/v1/alerts/{alertID}/taken  {"external_bet_id": "..."}
func (h *handler) markTaken(w http.ResponseWriter, r *http.Request) {
	var req takenRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	a, err := h.svc.MarkAlertTaken(r.Context(), chi.URLParam(r, "alertID"), req.ExternalBetID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toAlert(a))
}

type invalidateRequest struct {
	Reason string `json:"reason"`
}

// invalidate: POST /api/v1/alerts/{alertID}/invalidate  {"reason": "..."}
func (h *handler) invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	a, err := h.svc.InvalidateAlert(r.Context(), chi.URLParam(r, "alertID"), req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toAlert(a))
}

// --- parámetros ---

// policyFromQuery parte de la política configurada y aplica los overrides de la query.
func (h *handler) policyFromQuery(r *http.Request) (domain.Policy, error) {
	p := h.opts.Policy
	q := r.URL.Query()
	var err error

	if p.MinValue, err = floatParam(r, "min_value", p.MinValue); err != nil {
		return p, err
	}
	if p.MaxEvents, err = intParam(r, "max_events", p.MaxEvents); err != nil {
		return p, err
	}
	if p.MinConfidence, err = floatParam(r, "min_confidence", p.MinConfidence); err != nil {
		return p, err
	}
	if p.MinOdds, err = floatParam(r, "min_odds", p.MinOdds); err != nil {
		return p, err
	}
	if p.MaxOdds, err = floatParam(r, "max_odds", p.MaxOdds); err != nil {
		return p, err
	}
	if v := q.Get("auto_create_alerts"); v != "" {
		if p.AutoCreateAlerts, err = strconv.ParseBool(v); err != nil {
			return p, fmt.Errorf("auto_create_alerts %q: %w", v, domain.ErrInvalidInput)
		}
	}
	if v := q.Get("horizon"); v != "" {
		if p.Horizon, err = time.ParseDuration(v); err != nil {
			return p, fmt.Errorf("horizon %q: %w", v, domain.ErrInvalidInput)
		}
	}
	if types := splitList(q.Get("market_types")); len(types) > 0 {
		p.MarketTypes = types
	}
	return p, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s %q: %w", name, v, domain.ErrInvalidInput)
	}
	return f, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, v, domain.ErrInvalidInput)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// decodeBody acepta cuerpo vacío; JSON mal formado es ErrInvalidInput.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode body: %w: %w", domain.ErrInvalidInput, err)
}
