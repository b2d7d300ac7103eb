package metricskey

import "github.com/effective-security/metrics"

// Perf
var (
	// PerfJWTOperation is perf metric
	PerfJWTOperation = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_jwt",
		Help:         "perf_jwt provides the sample metrics of JWT sign and verify operations",
		RequiredTags: []string{"alg", "action"},
	}

	// PerfIssueOperation is perf metric
	PerfIssueOperation = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_jwt_issue",
		Help:         "perf_jwt_issue provides the sample metrics of token issuance",
		RequiredTags: []string{"issuer", "alg"},
	}

	// PerfValidateOperation is perf metric
	PerfValidateOperation = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_jwt_validate",
		Help:         "perf_jwt_validate provides the sample metrics of token validation",
		RequiredTags: []string{"issuer", "result"},
	}
)

// Metrics returns slice of metrics from this repo
var Metrics = []*metrics.Describe{
	&PerfJWTOperation,
	&PerfIssueOperation,
	&PerfValidateOperation,
}
