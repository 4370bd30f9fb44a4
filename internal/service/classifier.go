package service

import (
	"strings"

	"github.com/trackit-ai/assistant-go/internal/model"
)

// Query types produced by the classifier.
const (
	queryTypeDataRetrieval  = "data_retrieval"
	queryTypeAnalysis       = "analysis"
	queryTypeRecommendation = "recommendation"
	queryTypeFollowUp       = "follow_up"
)

var (
	dataKeywords = []string{
		"how much", "total", "spent", "spend", "cost", "top", "list",
		"show", "count", "most expensive", "cheapest", "last month",
		"this month",
	}
	analysisKeywords = []string{
		"analyze", "analysis", "pattern", "trend", "insight", "compare",
		"breakdown", "summary", "summarize", "why",
	}
	recommendKeywords = []string{
		"recommend", "recommendation", "suggest", "advice", "should i",
		"save money",
	}
	contextKeywords = []string{
		"that", "those", "it", "previous", "earlier", "before", "again",
		"last time",
	}
)

// Classify routes a query to an agent using keyword heuristics. The real
// backend uses an LLM for this; the heuristic keeps the development backend
// dependency-free while producing the same response shape.
func Classify(text string) model.Classification {
	lower := strings.ToLower(text)

	data := containsAny(lower, dataKeywords)
	analysis := containsAny(lower, analysisKeywords) || containsAny(lower, recommendKeywords)

	cls := model.Classification{
		Agent:      model.AgentSQL,
		Complexity: 1,
		QueryType:  queryTypeDataRetrieval,
		Reasoning:  "keyword heuristic classification",
	}

	switch {
	case data && analysis:
		cls.Agent = model.AgentHybrid
		cls.Complexity = 3
		cls.QueryType = queryTypeAnalysis
	case analysis:
		cls.Agent = model.AgentAnalysis
		cls.Complexity = 2
		if containsAny(lower, recommendKeywords) {
			cls.QueryType = queryTypeRecommendation
		} else {
			cls.QueryType = queryTypeAnalysis
		}
	}

	if containsAny(lower, contextKeywords) {
		cls.RequiresContext = true
		if cls.Complexity == 1 {
			cls.Complexity = 2
		}
		if cls.QueryType == queryTypeDataRetrieval {
			cls.QueryType = queryTypeFollowUp
		}
	}

	return cls
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
