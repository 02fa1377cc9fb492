package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier y además sabe imprimir arbitrajes,
// estadísticas y el resumen de alertas para la CLI.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador sobre un writer arbitrario (tests).
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime las value bets en el modo configurado.
func (c *Console) Notify(_ context.Context, opps []domain.ValueOpportunity) error {
	if len(opps) == 0 {
		fmt.Fprintf(c.out, "[%s] no value bets found\n", time.Now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printValueTable(opps)
	} else {
		c.printCompact(opps)
	}
	return nil
}

// printCompact imprime lo esencial en una línea, top 4.
func (c *Console) printCompact(opps []domain.ValueOpportunity) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d value bets", time.Now().Format("15:04:05"), len(opps))

	for i, o := range opps {
		if i >= 4 {
			fmt.Fprintf(&sb, " | +%d more", len(opps)-i)
			break
		}
		fmt.Fprintf(&sb, " | %s %s@%s %.2f v%.1f%%",
			compactName(o.EventName, 25), o.Selection, o.Bookmaker, o.Odds, o.ValuePercentage)
	}

	fmt.Fprintln(c.out, sb.String())
}

func (c *Console) printValueTable(opps []domain.ValueOpportunity) {
	fmt.Fprintf(c.out, "\n[%s] %d value bets\n", time.Now().Format("15:04:05"), len(opps))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Sport", "Event", "Pick", "Book", "Odds", "Impl%", "Pred%", "Conf", "Value%", "EV", "Starts")

	for i, o := range opps {
		table.Append(
			fmt.Sprintf("%d", i+1),
			o.SportKey,
			domain.TruncateName(o.EventName, 32),
			o.Selection,
			o.Bookmaker,
			fmt.Sprintf("%.2f", o.Odds),
			fmt.Sprintf("%.1f", o.ImpliedProbability*100),
			fmt.Sprintf("%.1f", o.PredictedProbability*100),
			fmt.Sprintf("%.2f", o.Confidence),
			fmt.Sprintf("%.2f", o.ValuePercentage),
			fmt.Sprintf("%.2f", o.ExpectedValue),
			startsLabel(o.ExpiresAt),
		)
	}
	table.Render()

	fmt.Fprintln(c.out, "  Impl% = 1/odds | Pred% = modelo | Value% = (pred×odds − 1) × 100 ajustado por confianza y margen")
}

// PrintArbitrage imprime los arbitrajes encontrados con su reparto de stakes.
func (c *Console) PrintArbitrage(arbs []domain.ArbitrageOpportunity) {
	if len(arbs) == 0 {
		fmt.Fprintln(c.out, "\n  No arbitrage found.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Legs", "Stake", "Sum(1/o)", "Profit", "Margin%")
	for i, a := range arbs {
		table.Append(
			fmt.Sprintf("%d", i+1),
			domain.TruncateName(a.MarketID, 30),
			fmt.Sprintf("%d", len(a.Legs)),
			fmt.Sprintf("%.2f", a.TotalStake),
			fmt.Sprintf("%.4f", a.ImpliedSum),
			fmt.Sprintf("%.2f", a.GuaranteedProfit),
			fmt.Sprintf("%.2f", a.ProfitMarginPct),
		)
	}
	table.Render()

	for i, a := range arbs {
		fmt.Fprintf(c.out, "\n  #%d %s (event %s)\n", i+1, a.MarketID, a.EventID)
		for _, l := range a.Legs {
			fmt.Fprintf(c.out, "     %-20s @ %-12s odds %6.2f  stake %8.2f  payout %8.2f\n",
				domain.TruncateName(l.Selection, 20), l.Platform, l.Odds, l.Stake, l.Payout)
		}
	}
	fmt.Fprintln(c.out)
}

// PrintStatistics imprime el resumen global y el desglose por grupo.
func (c *Console) PrintStatistics(s domain.Statistics) {
	fmt.Fprintf(c.out, "\n  Window: %s → %s  (group by %s)\n", s.Window.Start.Format("2006-01-02"), windowEnd(s.Window), s.GroupBy)
	if vb := s.ValueBets; vb.Found > 0 || vb.Taken > 0 {
		fmt.Fprintf(c.out, "  Value bets: found %d | taken %d | won %d | ROI %.1f%%\n", vb.Found, vb.Taken, vb.Won, vb.ROI)
	}

	if s.Overall.TotalBets == 0 {
		fmt.Fprintln(c.out, "  No settled bets in window.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Group", "Bets", "W", "L", "V", "Staked", "Won", "Net", "ROI%", "Win%")
	for _, g := range s.Groups {
		table.Append(statsRow(g)...)
	}
	if s.GroupBy != domain.GroupByNone {
		table.Footer(statsRow(s.Overall)...)
	}
	table.Render()
	fmt.Fprintln(c.out)
}

// PrintAlertSummary imprime el recuento de alertas por estado y deporte.
func (c *Console) PrintAlertSummary(s domain.AlertSummary) {
	fmt.Fprintf(c.out, "\n  Alerts: %d total | active %d | taken %d | expired %d | invalid %d\n",
		s.Total, s.Active, s.Taken, s.Expired, s.Invalid)
	if s.Total == 0 {
		return
	}
	fmt.Fprintf(c.out, "  Value: avg %.2f%% | best %.2f%%\n", s.AverageValue, s.HighestValue)

	sports := make([]string, 0, len(s.BySport))
	for k := range s.BySport {
		sports = append(sports, k)
	}
	sort.Strings(sports)

	table := tablewriter.NewWriter(c.out)
	table.Header("Sport", "Alerts")
	for _, k := range sports {
		table.Append(k, fmt.Sprintf("%d", s.BySport[k]))
	}
	table.Render()
	fmt.Fprintln(c.out)
}

// --- helpers ---

func statsRow(g domain.GroupStats) []any {
	return []any{
		g.Key,
		fmt.Sprintf("%d", g.TotalBets),
		fmt.Sprintf("%d", g.Wins),
		fmt.Sprintf("%d", g.Losses),
		fmt.Sprintf("%d", g.Voids),
		fmt.Sprintf("%.2f", g.TotalStaked),
		fmt.Sprintf("%.2f", g.TotalWon),
		fmt.Sprintf("%.2f", g.NetProfit),
		fmt.Sprintf("%.1f", g.ROI),
		fmt.Sprintf("%.1f", g.WinRate),
	}
}

func windowEnd(w domain.Window) string {
	if w.End.IsZero() {
		return "now"
	}
	return w.End.Format("2006-01-02")
}

func startsLabel(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	hours := time.Until(t).Hours()
	if hours >= 0 && hours < 48 {
		return fmt.Sprintf("%s (%.0fh)", t.Format("01-02 15:04"), hours)
	}
	return t.Format("2006-01-02 15:04")
}

func compactName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
