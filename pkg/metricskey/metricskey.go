package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsDispatchCallsSucceeded is base for counter metric for successful dispatches
	StatsDispatchCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_dispatch_calls_succeeded",
		Help:         "stats_dispatch_calls_succeeded provides total successful protocol dispatches",
		RequiredTags: []string{"protocol"},
	}

	StatsDispatchCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_dispatch_calls_failed",
		Help:         "stats_dispatch_calls_failed provides total failed protocol dispatches",
		RequiredTags: []string{"protocol"},
	}

	StatsDispatchDescriptorDefects = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_dispatch_descriptor_defects",
		Help:         "stats_dispatch_descriptor_defects provides total dispatches rejected before leaving the process",
		RequiredTags: []string{"protocol"},
	}

	StatsRecoveryAttempts = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_recovery_attempts",
		Help:         "stats_recovery_attempts provides total recovery loop attempts",
		RequiredTags: []string{"protocol"},
	}

	StatsRecoveryStrategies = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_recovery_strategies",
		Help:         "stats_recovery_strategies provides total recovery strategies applied",
		RequiredTags: []string{"strategy"},
	}

	StatsOracleCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_oracle_calls_failed",
		Help:         "stats_oracle_calls_failed provides total failed oracle calls",
		RequiredTags: []string{"oracle"},
	}

	StatsOracleParseErrors = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_oracle_parse_errors",
		Help:         "stats_oracle_parse_errors provides total oracle responses that failed to parse",
		RequiredTags: []string{"oracle"},
	}

	StatsProjectionBytesSaved = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_projection_bytes_saved",
		Help:         "stats_projection_bytes_saved provides total response bytes removed by projection",
		RequiredTags: []string{"protocol"},
	}
)

// Perf
var (
	PerfDispatch = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_dispatch",
		Help:         "perf_dispatch provides duration of a protocol dispatch",
		RequiredTags: []string{"protocol"},
	}

	PerfRecoveryRun = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_recovery_run",
		Help:         "perf_recovery_run provides duration of a full recovery loop run",
		RequiredTags: []string{"protocol"},
	}

	PerfOracleCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_oracle_call",
		Help:         "perf_oracle_call provides duration of an oracle call",
		RequiredTags: []string{"oracle"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfDispatch,
	&PerfOracleCall,
	&PerfRecoveryRun,
	&StatsDispatchCallsFailed,
	&StatsDispatchCallsSucceeded,
	&StatsDispatchDescriptorDefects,
	&StatsOracleCallsFailed,
	&StatsOracleParseErrors,
	&StatsProjectionBytesSaved,
	&StatsRecoveryAttempts,
	&StatsRecoveryStrategies,
}
