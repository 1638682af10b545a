// Package metrics summarizes consistency-check outcomes: answer
// distributions, agreement with the modal answer, entropy, and witness plans
// for each distinct answer.
package metrics

import (
	"math"
	"sort"
)

// Outcome is one plan's contribution to the summary. Errored plans carry
// Errored=true and are excluded from every statistic.
type Outcome struct {
	PlanKey    string
	Answer     string
	Normalized string
	Errored    bool
}

func (o Outcome) answer(useNormalized bool) string {
	if useNormalized {
		return o.Normalized
	}
	return o.Answer
}

// Distribution counts answers across non-errored outcomes.
func Distribution(outcomes []Outcome, useNormalized bool) map[string]int {
	dist := make(map[string]int)
	for _, o := range outcomes {
		if o.Errored {
			continue
		}
		dist[o.answer(useNormalized)]++
	}
	return dist
}

// Mode returns the most frequent answer and its count. Ties break to the
// lexicographically smallest answer; an empty outcome set yields ("", 0).
func Mode(outcomes []Outcome, useNormalized bool) (string, int) {
	dist := Distribution(outcomes, useNormalized)
	best, bestCount := "", 0
	for ans, count := range dist {
		if count > bestCount || (count == bestCount && bestCount > 0 && ans < best) {
			best, bestCount = ans, count
		}
	}
	return best, bestCount
}

// AgreementRate is the fraction of non-errored outcomes equal to the modal
// answer. Zero when there are no usable outcomes.
func AgreementRate(outcomes []Outcome, useNormalized bool) float64 {
	_, modeCount := Mode(outcomes, useNormalized)
	total := 0
	for _, o := range outcomes {
		if !o.Errored {
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(modeCount) / float64(total)
}

// ShannonEntropy computes the entropy of an answer distribution in natural
// units (nats). A unanimous distribution has entropy 0.
func ShannonEntropy(dist map[string]int) float64 {
	total := 0
	for _, c := range dist {
		total += c
	}
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, c := range dist {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log(p)
	}
	return entropy
}

// Witnesses maps each distinct answer to up to maxPerAnswer plan keys that
// produced it, preserving outcome order. maxPerAnswer <= 0 keeps all.
func Witnesses(outcomes []Outcome, useNormalized bool, maxPerAnswer int) map[string][]string {
	wit := make(map[string][]string)
	for _, o := range outcomes {
		if o.Errored {
			continue
		}
		ans := o.answer(useNormalized)
		if maxPerAnswer > 0 && len(wit[ans]) >= maxPerAnswer {
			continue
		}
		wit[ans] = append(wit[ans], o.PlanKey)
	}
	return wit
}

// AnswerCount pairs an answer with its frequency.
type AnswerCount struct {
	Answer string `json:"answer"`
	Count  int    `json:"count"`
}

// Summary aggregates the statistics of one consistency run.
type Summary struct {
	NumRuns          int                 `json:"num_runs"`
	NumErrored       int                 `json:"num_errored"`
	NumUniqueAnswers int                 `json:"num_unique_answers"`
	ModeAnswer       string              `json:"mode_answer"`
	ModeFraction     float64             `json:"mode_fraction"`
	Entropy          float64             `json:"entropy"`
	TopAnswers       []AnswerCount       `json:"top_answers"`
	WitnessPlans     map[string][]string `json:"witness_plans"`
}

// Summarize builds a Summary over the outcomes. topK bounds TopAnswers and
// maxWitnessesPerAnswer bounds each witness list; non-positive values keep
// everything.
func Summarize(outcomes []Outcome, useNormalized bool, topK, maxWitnessesPerAnswer int) Summary {
	dist := Distribution(outcomes, useNormalized)
	mode, _ := Mode(outcomes, useNormalized)

	errored := 0
	for _, o := range outcomes {
		if o.Errored {
			errored++
		}
	}

	top := make([]AnswerCount, 0, len(dist))
	for ans, count := range dist {
		top = append(top, AnswerCount{Answer: ans, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Answer < top[j].Answer
	})
	if topK > 0 && len(top) > topK {
		top = top[:topK]
	}

	return Summary{
		NumRuns:          len(outcomes),
		NumErrored:       errored,
		NumUniqueAnswers: len(dist),
		ModeAnswer:       mode,
		ModeFraction:     AgreementRate(outcomes, useNormalized),
		Entropy:          ShannonEntropy(dist),
		TopAnswers:       top,
		WitnessPlans:     Witnesses(outcomes, useNormalized, maxWitnessesPerAnswer),
	}
}
