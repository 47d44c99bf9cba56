package summarizer

import (
	"context"
	"fmt"
	"strings"
)

// Fallback writes narratives from fixed rating and NPS thresholds. It is
// deterministic and never fails.
type Fallback struct{}

func (Fallback) Name() string {
	return "rules"
}

func (Fallback) Summarize(_ context.Context, req Request) (string, error) {
	if req.Entity != "" {
		return trainerNarrative(req), nil
	}
	return overallNarrative(req.KPIs), nil
}

func overallNarrative(kpis map[string]float64) string {
	rating := kpis["overall_rating"]
	nps := kpis["nps"]

	var bullets []string
	switch {
	case rating >= 4.5:
		bullets = append(bullets, fmt.Sprintf("Outstanding Performance: training programs are achieving excellent results with a rating of %.2f/5.0.", rating))
	case rating >= 4.0:
		bullets = append(bullets, fmt.Sprintf("Strong Performance: training is well received with a solid %.2f/5.0 rating, indicating consistent quality delivery.", rating))
	default:
		bullets = append(bullets, fmt.Sprintf("Room for Growth: the current rating of %.2f/5.0 suggests opportunities to improve training effectiveness.", rating))
	}

	switch {
	case nps >= 50:
		bullets = append(bullets, fmt.Sprintf("High Satisfaction: an NPS of %.1f shows strong participant loyalty and willingness to recommend.", nps))
	case nps >= 0:
		bullets = append(bullets, fmt.Sprintf("Positive Sentiment: an NPS of %.1f shows generally satisfied participants with room to raise enthusiasm.", nps))
	default:
		bullets = append(bullets, fmt.Sprintf("Action Needed: an NPS of %.1f points to participant concerns that need addressing.", nps))
	}

	bullets = append(bullets, "Focus Areas: build on trainer strengths, gather detailed feedback on weaker sessions and keep delivery consistent.")

	for i, b := range bullets {
		bullets[i] = "• " + b
	}
	return strings.Join(bullets, "\n\n")
}

func trainerNarrative(req Request) string {
	overall, ok := req.Metrics["overall"]
	if !ok {
		overall = req.KPIs["overall_rating"]
	}

	var strengths []string
	if req.Metrics["knowledge"] >= 4.5 {
		strengths = append(strengths, "exceptional subject expertise")
	}
	if req.Metrics["adaptability"] >= 4.5 {
		strengths = append(strengths, "outstanding adaptability to different learning styles")
	}
	if overall >= 4.7 {
		strengths = append(strengths, "consistently outstanding delivery")
	}

	var b strings.Builder
	switch {
	case len(strengths) > 0:
		fmt.Fprintf(&b, "%s demonstrates %s.", req.Entity, strings.Join(strengths, ", "))
	case overall >= 4.0:
		fmt.Fprintf(&b, "%s demonstrates strong performance across all metrics.", req.Entity)
	default:
		fmt.Fprintf(&b, "%s shows clear opportunities for development.", req.Entity)
	}

	if c := firstComment(req.Comments); c != "" {
		fmt.Fprintf(&b, " Participants specifically noted that %q.", c)
	}

	switch {
	case overall >= 4.5:
		fmt.Fprintf(&b, " With an average rating of %.2f/5.0, they set a high standard for training delivery.", overall)
	case overall >= 4.0:
		fmt.Fprintf(&b, " With an average rating of %.2f/5.0, they consistently create positive learning experiences.", overall)
	default:
		fmt.Fprintf(&b, " With an average rating of %.2f/5.0, specific participant feedback on delivery and engagement is the clearest next step.", overall)
	}
	return b.String()
}

func firstComment(comments []string) string {
	for _, c := range comments {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}
