package summarizer

import (
	"fmt"
	"strings"
)

const (
	overallSystemPrompt = "You are a data analyst specializing in training program evaluation. Be concise and actionable."
	trainerSystemPrompt = "You are a training evaluation expert. Write personalized, specific profiles that celebrate achievements. Be warm but professional."

	overallMaxTokens = 300
	trainerMaxTokens = 250

	// maxPromptComments caps the comment sample sent to a model.
	maxPromptComments = 5

	temperature = 0.7
)

type prompt struct {
	system    string
	user      string
	maxTokens int
}

func buildPrompt(req Request) prompt {
	if req.Entity != "" {
		return prompt{system: trainerSystemPrompt, user: trainerPrompt(req), maxTokens: trainerMaxTokens}
	}
	return prompt{system: overallSystemPrompt, user: overallPrompt(req), maxTokens: overallMaxTokens}
}

func overallPrompt(req Request) string {
	k := req.KPIs
	var b strings.Builder
	b.WriteString("Analyze this training feedback data and provide 3 key insights:\n\n")
	b.WriteString("Data Summary:\n")
	fmt.Fprintf(&b, "- Total Responses: %.0f\n", k["total_responses"])
	fmt.Fprintf(&b, "- Overall Rating: %.2f/5.0\n", k["overall_rating"])
	fmt.Fprintf(&b, "- NPS Score: %.1f\n", k["nps"])
	fmt.Fprintf(&b, "- Response Rate: %.0f%%\n", k["response_rate"])
	fmt.Fprintf(&b, "- Number of Trainers: %.0f\n", k["trainer_count"])
	fmt.Fprintf(&b, "- Number of Courses: %.0f\n", k["course_count"])
	if comments := sampleComments(req.Comments); len(comments) > 0 {
		b.WriteString("\nSample Participant Feedback:\n")
		writeComments(&b, comments)
	}
	b.WriteString("\nProvide 3 bullet points:\n")
	b.WriteString("1. Overall performance assessment\n")
	b.WriteString("2. What's working well\n")
	b.WriteString("3. Areas for improvement\n\n")
	b.WriteString("Keep it concise, professional, and actionable. Use bullet points (•).")
	return b.String()
}

func trainerPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Analyze this trainer's performance and generate a comprehensive but concise profile (3-4 sentences):\n\n")
	fmt.Fprintf(&b, "Trainer: %s\n", req.Entity)
	fmt.Fprintf(&b, "Knowledge Score: %s/5.0\n", metric(req.Metrics, "knowledge"))
	fmt.Fprintf(&b, "Adaptability Score: %s/5.0\n", metric(req.Metrics, "adaptability"))
	fmt.Fprintf(&b, "Feedback Quality Score: %s/5.0\n", metric(req.Metrics, "feedback"))
	fmt.Fprintf(&b, "Guidance Score: %s/5.0\n", metric(req.Metrics, "guidance"))
	fmt.Fprintf(&b, "Average Rating: %s/5.0\n", metric(req.Metrics, "overall"))
	b.WriteString("\nParticipant Comments:\n")
	writeComments(&b, sampleComments(req.Comments))
	b.WriteString("\nCreate a personalized profile highlighting:\n")
	b.WriteString("1. Key teaching strengths (based on metrics)\n")
	b.WriteString("2. What makes them exceptional (from comments)\n")
	b.WriteString("3. One area they excel at most\n")
	b.WriteString("Be specific, warm, and actionable.")
	return b.String()
}

func metric(m map[string]float64, name string) string {
	v, ok := m[name]
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", v)
}

func sampleComments(comments []string) []string {
	var out []string
	for _, c := range comments {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
			if len(out) == maxPromptComments {
				break
			}
		}
	}
	return out
}

func writeComments(b *strings.Builder, comments []string) {
	for _, c := range comments {
		fmt.Fprintf(b, "- %q\n", c)
	}
}
