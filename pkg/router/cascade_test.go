package router_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/laitim2001/itsm-intent-router/pkg/classification"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/router"
	"github.com/laitim2001/itsm-intent-router/pkg/semantic"
)

type fakePattern struct {
	result classification.MatchResult
	calls  int
}

func (f *fakePattern) Match(string) classification.MatchResult {
	f.calls++
	return f.result
}

type fakeSemantic struct {
	result semantic.Result
	calls  int
}

func (f *fakeSemantic) Route(context.Context, string) semantic.Result {
	f.calls++
	return f.result
}

type fakeLLM struct {
	result classification.LLMResult
	calls  int
}

func (f *fakeLLM) Classify(context.Context, string) classification.LLMResult {
	f.calls++
	return f.result
}

type fakeCompleteness struct {
	info  intent.CompletenessInfo
	calls int
}

func (f *fakeCompleteness) Check(intent.Category, string, map[string]string) (intent.CompletenessInfo, map[string]string) {
	f.calls++
	return f.info, map[string]string{}
}

var _ = Describe("BusinessIntentRouter", func() {
	var (
		pattern      *fakePattern
		sem          *fakeSemantic
		llm          *fakeLLM
		completeness *fakeCompleteness
		opts         router.Options
	)

	BeforeEach(func() {
		pattern = &fakePattern{}
		sem = &fakeSemantic{}
		llm = &fakeLLM{result: classification.LLMResult{
			Category:   intent.CategoryQuery,
			SubIntent:  "how_to",
			Confidence: 0.6,
		}}
		completeness = &fakeCompleteness{info: intent.CompletenessInfo{
			IsComplete:        true,
			CompletenessScore: 1.0,
			MissingFields:     []string{},
		}}
		opts = router.Options{
			PatternThreshold:   0.90,
			SemanticThreshold:  0.85,
			EnableLLMFallback:  true,
			EnableCompleteness: true,
		}
	})

	newRouter := func() *router.BusinessIntentRouter {
		return router.New(pattern, sem, llm, completeness, opts, nil)
	}

	Context("when the pattern layer matches above threshold", func() {
		BeforeEach(func() {
			pattern.result = classification.MatchResult{
				Matched:      true,
				Category:     intent.CategoryIncident,
				SubIntent:    "etl_failure",
				RuleID:       "etl-failure",
				Confidence:   0.95,
				WorkflowType: intent.WorkflowSequential,
				RiskLevel:    intent.RiskHigh,
			}
		})

		It("short-circuits without invoking semantic or llm", func() {
			decision := newRouter().Route(context.Background(), "ETL 今天跑失敗了", "corr-1")

			Expect(decision.RoutingLayer).To(Equal(intent.LayerPattern))
			Expect(decision.IntentCategory).To(Equal(intent.CategoryIncident))
			Expect(decision.SubIntent).To(Equal("etl_failure"))
			Expect(decision.RuleID).To(Equal("etl-failure"))

			Expect(pattern.calls).To(Equal(1))
			Expect(sem.calls).To(BeZero())
			Expect(llm.calls).To(BeZero())
		})

		It("carries the rule workflow and risk into the decision", func() {
			decision := newRouter().Route(context.Background(), "etl fail", "corr-2")
			Expect(decision.WorkflowType).To(Equal(intent.WorkflowSequential))
			Expect(decision.RiskLevel).To(Equal(intent.RiskHigh))
		})
	})

	Context("when the pattern layer matches below threshold", func() {
		BeforeEach(func() {
			pattern.result = classification.MatchResult{
				Matched:    true,
				Category:   intent.CategoryIncident,
				Confidence: 0.80,
			}
			sem.result = semantic.Result{
				Matched:      true,
				RouteName:    "report-incident",
				Category:     intent.CategoryIncident,
				SubIntent:    "system_failure",
				Similarity:   0.91,
				WorkflowType: intent.WorkflowSequential,
				RiskLevel:    intent.RiskHigh,
			}
		})

		It("escalates to the semantic layer", func() {
			decision := newRouter().Route(context.Background(), "the app is broken somehow", "corr-3")

			Expect(decision.RoutingLayer).To(Equal(intent.LayerSemantic))
			Expect(decision.RuleID).To(Equal("report-incident"))
			Expect(pattern.calls).To(Equal(1))
			Expect(sem.calls).To(Equal(1))
			Expect(llm.calls).To(BeZero())
		})
	})

	Context("when pattern and semantic both reject", func() {
		It("falls through to the llm layer and always accepts", func() {
			decision := newRouter().Route(context.Background(), "some vague text", "corr-4")

			Expect(decision.RoutingLayer).To(Equal(intent.LayerLLM))
			Expect(decision.IntentCategory).To(Equal(intent.CategoryQuery))
			Expect(pattern.calls).To(Equal(1))
			Expect(sem.calls).To(Equal(1))
			Expect(llm.calls).To(Equal(1))
		})

		It("accepts an UNKNOWN llm verdict as the final answer", func() {
			llm.result = classification.LLMResult{
				Category:  intent.CategoryUnknown,
				Reasoning: "llm backend unavailable",
			}
			decision := newRouter().Route(context.Background(), "???", "corr-5")

			Expect(decision.RoutingLayer).To(Equal(intent.LayerLLM))
			Expect(decision.IntentCategory).To(Equal(intent.CategoryUnknown))
			Expect(decision.Confidence).To(BeZero())
			Expect(decision.WorkflowType).To(Equal(intent.WorkflowHandoff))
		})
	})

	Context("when the llm fallback is disabled", func() {
		BeforeEach(func() {
			opts.EnableLLMFallback = false
		})

		It("returns UNKNOWN from layer none without calling the llm", func() {
			decision := newRouter().Route(context.Background(), "some vague text", "corr-6")

			Expect(decision.RoutingLayer).To(Equal(intent.LayerNone))
			Expect(decision.IntentCategory).To(Equal(intent.CategoryUnknown))
			Expect(llm.calls).To(BeZero())
		})
	})

	Context("with empty input", func() {
		It("short-circuits without invoking any layer", func() {
			decision := newRouter().Route(context.Background(), "   ", "corr-7")

			Expect(decision.RoutingLayer).To(Equal(intent.LayerEmptyInput))
			Expect(decision.IntentCategory).To(Equal(intent.CategoryUnknown))
			Expect(pattern.calls).To(BeZero())
			Expect(sem.calls).To(BeZero())
			Expect(llm.calls).To(BeZero())
		})
	})

	Context("completeness scoring", func() {
		BeforeEach(func() {
			pattern.result = classification.MatchResult{
				Matched:    true,
				Category:   intent.CategoryIncident,
				SubIntent:  "etl_failure",
				Confidence: 0.95,
			}
		})

		It("runs the checker on accepted known-category decisions", func() {
			completeness.info = intent.CompletenessInfo{
				IsComplete:        false,
				CompletenessScore: 0.5,
				MissingFields:     []string{"error_description"},
			}
			decision := newRouter().Route(context.Background(), "etl issue", "corr-8")

			Expect(completeness.calls).To(Equal(1))
			Expect(decision.Completeness.IsComplete).To(BeFalse())
			Expect(decision.Completeness.MissingFields).To(ConsistOf("error_description"))
		})

		It("skips the checker when disabled and reports trivially complete", func() {
			opts.EnableCompleteness = false
			decision := newRouter().Route(context.Background(), "etl issue", "corr-9")

			Expect(completeness.calls).To(BeZero())
			Expect(decision.Completeness.IsComplete).To(BeTrue())
		})
	})

	Context("decision invariants", func() {
		It("never returns nil and always stamps latency metadata", func() {
			decision := newRouter().Route(context.Background(), "anything", "corr-10")

			Expect(decision).NotTo(BeNil())
			Expect(decision.Metadata).To(HaveKey("total_latency_ms"))
			Expect(decision.Confidence).To(BeNumerically(">=", 0))
			Expect(decision.Confidence).To(BeNumerically("<=", 1))
		})

		It("accumulates per-layer stats", func() {
			r := newRouter()
			r.Route(context.Background(), "anything", "corr-11")

			snapshot := r.Stats().Snapshot()
			Expect(snapshot).To(HaveKey(intent.LayerPattern))
			Expect(snapshot[intent.LayerPattern].Attempts).To(Equal(int64(1)))
		})
	})
})
