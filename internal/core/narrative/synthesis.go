package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"github.com/saidurgaphani/CS2026/internal/core"
	"github.com/saidurgaphani/CS2026/internal/models"
)

const insightCount = 4

const systemPrompt = `You are a senior business analyst writing an executive report.
Given a statistical digest of an uploaded dataset, respond with STRICT JSON only:
{"executive_summary": "...", "insights": [{"metric": "...", "value": "...", "change": "...", "sentiment": "positive|negative", "narrative": "..."}]}
Produce exactly 4 insights. Values and changes must be short formatted strings
(e.g. "$4.2M", "+12%"). Narratives are one or two sentences. No markdown, no
text outside the JSON object.`

// Narrative is the adapter's output: an executive summary plus exactly four
// insight records (the fallback set when the model path fails).
type Narrative struct {
	ExecutiveSummary string           `json:"executive_summary"`
	Insights         []models.Insight `json:"insights"`
}

// Synthesizer wraps the external narrative model. It is the one boundary
// where partial failure is fully absorbed: Synthesize never fails, it
// degrades to a fixed deterministic response.
type Synthesizer struct {
	llm core.LLMProvider
}

func NewSynthesizer(llm core.LLMProvider) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Synthesize asks the model for a narrative over the digest. Any provider
// error, timeout, or malformed response yields the fallback narrative.
func (s *Synthesizer) Synthesize(ctx context.Context, d Digest) *Narrative {
	if s.llm == nil {
		return FallbackNarrative()
	}

	prompt := fmt.Sprintf("Report title: %s\nBusiness domain: %s\nUnstructured source: %t\n\n%s",
		d.Title, d.Domain, d.IsText, d.Body)

	raw, err := s.llm.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		log.Printf("narrative: generation failed, using fallback: %v", err)
		return FallbackNarrative()
	}

	n, err := parseNarrative(raw)
	if err != nil {
		log.Printf("narrative: unparseable model output, using fallback: %v", err)
		return FallbackNarrative()
	}
	return n
}

// parseNarrative tolerantly decodes the model's JSON: code fences stripped,
// common LLM JSON damage repaired, then the shape validated.
func parseNarrative(raw string) (*Narrative, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	if start := strings.Index(cleaned, "{"); start > 0 {
		cleaned = cleaned[start:]
	}

	repaired, err := jsonrepair.RepairJSON(cleaned)
	if err != nil {
		return nil, fmt.Errorf("repair: %w", err)
	}

	var n Narrative
	if err := json.Unmarshal([]byte(repaired), &n); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if strings.TrimSpace(n.ExecutiveSummary) == "" {
		return nil, fmt.Errorf("missing executive_summary")
	}
	if len(n.Insights) != insightCount {
		return nil, fmt.Errorf("expected %d insights, got %d", insightCount, len(n.Insights))
	}
	for i := range n.Insights {
		if n.Insights[i].Sentiment != "positive" && n.Insights[i].Sentiment != "negative" {
			n.Insights[i].Sentiment = "positive"
		}
	}
	return &n, nil
}

// FallbackNarrative is the fixed response substituted when the narrative
// service is unavailable or returns garbage. Same shape, canned content.
func FallbackNarrative() *Narrative {
	return &Narrative{
		ExecutiveSummary: "The analysis reveals a steady growth in revenue but highlights significant inefficiencies in supply chain logistics.",
		Insights: []models.Insight{
			{
				Metric:    "Revenue",
				Value:     "$4.2M",
				Change:    "+12%",
				Sentiment: "positive",
				Narrative: "Consistent growth driven by regional expansion.",
			},
			{
				Metric:    "Logistics Cost",
				Value:     "$890k",
				Change:    "+24%",
				Sentiment: "negative",
				Narrative: "Surge in fuel surcharges and carrier delays.",
			},
			{
				Metric:    "Profit Margin",
				Value:     "18.5%",
				Change:    "-2%",
				Sentiment: "negative",
				Narrative: "Margin compression as cost growth outpaces revenue.",
			},
			{
				Metric:    "Operating Efficiency",
				Value:     "72%",
				Change:    "+4%",
				Sentiment: "positive",
				Narrative: "Process automation lifted throughput per operating dollar.",
			},
		},
	}
}
