package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HarvestPagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvest_pages_total",
		Help: "History pages fetched during harvesting",
	})
	HarvestedMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvested_messages_total",
		Help: "Messages kept after window and author screening",
	})
	HarvestErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvest_errors_total",
		Help: "Sources dropped because of history read failures",
	})
	SummaryBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "summary_build_seconds",
		Help:    "Wall time of one guild summary build, oracle call included",
		Buckets: prometheus.DefBuckets,
	})
	PublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "publish_errors_total",
		Help: "Failed digest publications to the document store",
	})

	DigestJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_jobs_total",
		Help: "Digest jobs processed by the worker",
	}, []string{"cause", "status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Duration of outbound network requests",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120, 180, 300, 600},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Count of outbound network requests",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Duration of LLM completions",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Tokens spent on LLM completions",
	}, []string{"model", "type"})
)

// MustRegister registers every metric of the service.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		HarvestPagesTotal,
		HarvestedMessagesTotal,
		HarvestErrors,
		SummaryBuildSeconds,
		PublishErrors,
		DigestJobsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// ObserveNetworkRequest records the duration and outcome of one outbound
// request.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration records the duration and token usage of one completion.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// IncDigestJob counts a processed digest job by cause and outcome.
func IncDigestJob(cause string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DigestJobsTotal.WithLabelValues(cause, status).Inc()
}
