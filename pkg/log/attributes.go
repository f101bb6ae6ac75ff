// Standard attribute keys.
//
// Keys follow a dotted naming convention ("data.samples",
// "io.path") so JSON logs from both pipelines can be filtered the same way.

package log

// Run and component context
const (
	// RunIDKey identifies a single pipeline invocation.
	RunIDKey = "run.id"

	// PipelineKey names the pipeline being executed ("impute", "sparse-pca").
	PipelineKey = "run.pipeline"

	// ModelNameKey identifies the transform type.
	// Examples: "StandardScaler", "IterativeImputer", "SparsePCA"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates which dataset is being processed ("train", "test").
	PhaseKey = "ml.phase"
)

// Data shape
const (
	// SamplesKey indicates the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// MissingKey indicates the number of cells matching the missing-value sentinel.
	MissingKey = "data.missing"

	// ChunkIndexKey is the zero-based index of a streamed chunk.
	ChunkIndexKey = "data.chunk_index"

	// ChunkSizeKey is the configured maximum chunk size.
	ChunkSizeKey = "data.chunk_size"

	// EmptyColumnsKey lists feature columns without a single observed value.
	EmptyColumnsKey = "data.empty_columns"

	// ComponentsKey is the number of extracted components.
	ComponentsKey = "data.components"
)

// I/O
const (
	// PathKey is the file being read or written.
	PathKey = "io.path"

	// RowsWrittenKey is the number of data rows written to a destination.
	RowsWrittenKey = "io.rows_written"
)

// Fitting
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the number of iterations an iterative fit ran.
	IterationKey = "training.iteration"

	// ConvergedKey reports whether an iterative fit met its tolerance.
	ConvergedKey = "training.converged"

	// R2MeanKey and R2MinKey summarize the in-sample R² of the imputer's
	// last round of per-feature regressions.
	R2MeanKey = "training.r2_mean"
	R2MinKey  = "training.r2_min"

	// ParamsKey records a transformer's hyperparameters.
	ParamsKey = "model.params"

	// LambdaKey records the fitted Box-Cox exponent.
	LambdaKey = "model.lambda"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Errors
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationLoad         = "load"
	OperationWrite        = "write"

	PhaseTrain = "train"
	PhaseTest  = "test"
)
