package model

import (
	"context"
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/serialization"

	"github.com/google/uuid"
)

// JobStatus represents the state of a job execution.
type JobStatus string

const (
	BatchStatusStarting  JobStatus = "STARTING"
	BatchStatusStarted   JobStatus = "STARTED"
	BatchStatusStopping  JobStatus = "STOPPING"
	BatchStatusStopped   JobStatus = "STOPPED"
	BatchStatusCompleted JobStatus = "COMPLETED"
	BatchStatusFailed    JobStatus = "FAILED"
	BatchStatusAbandoned JobStatus = "ABANDONED"
	BatchStatusUnknown   JobStatus = "UNKNOWN"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsFinished checks if the JobStatus represents a finished state.
func (s JobStatus) IsFinished() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusStopped, BatchStatusAbandoned:
		return true
	default:
		return false
	}
}

// ToExitStatus converts the JobStatus to its corresponding ExitStatus.
func (s JobStatus) ToExitStatus() ExitStatus {
	switch s {
	case BatchStatusCompleted:
		return ExitStatusCompleted
	case BatchStatusFailed:
		return ExitStatusFailed
	case BatchStatusStopped:
		return ExitStatusStopped
	case BatchStatusAbandoned:
		return ExitStatusAbandoned
	default:
		return ExitStatusUnknown
	}
}

// ExitStatus represents the detailed status upon job/step completion.
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
	ExitStatusAbandoned ExitStatus = "ABANDONED"
)

// String returns the ExitStatus as a string.
func (s ExitStatus) String() string {
	return string(s)
}

// ExecutionContext is a key-value store for sharing state across job and step executions.
type ExecutionContext map[string]interface{}

// Value implements the `driver.Valuer` interface, converting the ExecutionContext to a JSON string.
func (ec ExecutionContext) Value() (driver.Value, error) {
	if ec == nil {
		return "{}", nil
	}
	data, err := json.Marshal(ec)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to an ExecutionContext.
func (ec *ExecutionContext) Scan(value interface{}) error {
	if value == nil {
		*ec = make(ExecutionContext)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for ExecutionContext: %T", value)
	}

	if len(b) == 0 {
		*ec = make(ExecutionContext)
		return nil
	}

	if err := json.Unmarshal(b, ec); err != nil {
		return fmt.Errorf("failed to unmarshal ExecutionContext JSON: %w", err)
	}
	return nil
}

// JobParameters is a structure holding parameters for job execution.
type JobParameters struct {
	Params map[string]interface{}
}

// Value implements the `driver.Valuer` interface, converting JobParameters to a JSON string.
func (jp JobParameters) Value() (driver.Value, error) {
	if jp.Params == nil {
		return "{}", nil
	}
	data, err := json.Marshal(jp.Params)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to JobParameters.
func (jp *JobParameters) Scan(value interface{}) error {
	if value == nil {
		jp.Params = make(map[string]interface{})
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for JobParameters: %T", value)
	}

	if len(b) == 0 {
		jp.Params = make(map[string]interface{})
		return nil
	}

	if err := json.Unmarshal(b, &jp.Params); err != nil {
		return fmt.Errorf("failed to unmarshal JobParameters JSON: %w", err)
	}
	return nil
}

// FailureList holds a list of error messages.
type FailureList []string

// Value implements the `driver.Valuer` interface, converting FailureList to a JSON string.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to FailureList.
func (fl *FailureList) Scan(value interface{}) error {
	if value == nil {
		*fl = make(FailureList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for FailureList: %T", value)
	}

	if len(b) == 0 {
		*fl = make(FailureList, 0)
		return nil
	}

	if err := json.Unmarshal(b, fl); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

// JobInstance is a structure representing the logical execution unit of a job.
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	CreateTime     time.Time
	Version        int
	ParametersHash string
}

// JobExecution is a structure representing a single execution instance of a job.
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       JobParameters
	StartTime        time.Time
	EndTime          *time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	ExitCode         int
	Failures         FailureList
	Version          int
	CreateTime       time.Time
	LastUpdated      time.Time
	StepExecutions   []*StepExecution
	ExecutionContext ExecutionContext
	CurrentStepName  string
	CancelFunc       context.CancelFunc
}

// StepExecution is a structure representing a single execution instance of a
// pipeline stage.
type StepExecution struct {
	ID             string
	StepName       string
	JobExecution   *JobExecution
	StartTime      time.Time
	JobExecutionID string
	EndTime        *time.Time
	Status         JobStatus
	ExitStatus     ExitStatus
	Failures       FailureList
	// InputRows is the number of rows the stage consumed from its inputs.
	InputRows int64
	// OutputRows is the number of rows the stage produced.
	OutputRows int64
	// WarningCount is the total number of join-cardinality warnings the stage
	// emitted, summed over all warning kinds.
	WarningCount     int64
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
	Version          int
}

// AddWarnings increments the stage's warning counter.
func (se *StepExecution) AddWarnings(n int64) {
	if n <= 0 {
		return
	}
	se.WarningCount += n
	se.LastUpdated = time.Now()
}

// DebugString returns a debug string representation of StepExecution, excluding ExecutionContext details.
func (se *StepExecution) DebugString() string {
	endTimeStr := "nil"
	if se.EndTime != nil {
		endTimeStr = se.EndTime.Format(time.RFC3339Nano)
	}

	return fmt.Sprintf(
		"&{ID:%s StepName:%s JobExecutionID:%s StartTime:%s EndTime:%s Status:%s ExitStatus:%s Failures:%v InputRows:%d OutputRows:%d WarningCount:%d ExecutionContext: (omitted, size: %d) LastUpdated:%s Version:%d}",
		se.ID, se.StepName, se.JobExecutionID, se.StartTime.Format(time.RFC3339Nano),
		endTimeStr, se.Status, se.ExitStatus, se.Failures,
		se.InputRows, se.OutputRows, se.WarningCount, len(se.ExecutionContext),
		se.LastUpdated.Format(time.RFC3339Nano), se.Version,
	)
}

// PlanDefinition defines the ordered sequence of stages a job executes.
// Stages run strictly in order; a stage failure fails the job without
// running the remaining stages.
type PlanDefinition struct {
	// StageOrder holds stage names in execution order.
	StageOrder []string
	// Elements maps stage names to their executable elements.
	// interface{} is used here to avoid circular dependency with port.Step.
	Elements map[string]interface{}
}

// NewPlanDefinition creates a new empty PlanDefinition.
func NewPlanDefinition() *PlanDefinition {
	return &PlanDefinition{
		StageOrder: make([]string, 0),
		Elements:   make(map[string]interface{}),
	}
}

// AddStage appends a stage to the plan. Stage names must be unique.
func (pd *PlanDefinition) AddStage(name string, element interface{}) error {
	if _, exists := pd.Elements[name]; exists {
		return fmt.Errorf("plan stage '%s' already exists", name)
	}
	pd.StageOrder = append(pd.StageOrder, name)
	pd.Elements[name] = element
	return nil
}

// Stage returns the element registered under the given stage name.
func (pd *PlanDefinition) Stage(name string) (interface{}, bool) {
	el, ok := pd.Elements[name]
	return el, ok
}

// NewExecutionContext creates a new empty ExecutionContext.
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Put sets a value in the ExecutionContext with the specified key and value.
func (ec ExecutionContext) Put(key string, value interface{}) {
	ec[key] = value
}

// Get retrieves the value for the specified key. Returns nil and false if the value does not exist.
func (ec ExecutionContext) Get(key string) (interface{}, bool) {
	val, ok := ec[key]
	return val, ok
}

// GetString retrieves the value for the specified key as a string.
func (ec ExecutionContext) GetString(key string) (string, bool) {
	val, ok := ec[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt retrieves the value for the specified key as an int.
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	val, ok := ec[key]
	if !ok {
		return 0, false
	}
	// Numbers unmarshaled from JSON arrive as float64.
	if i, ok := val.(int); ok {
		return i, true
	}
	if i, ok := val.(int64); ok {
		return int(i), true
	}
	if f, ok := val.(float64); ok {
		return int(f), true
	}
	return 0, false
}

// GetInt64 retrieves the value for the specified key as an int64.
func (ec ExecutionContext) GetInt64(key string) (int64, bool) {
	val, ok := ec[key]
	if !ok {
		return 0, false
	}
	if i, ok := val.(int64); ok {
		return i, true
	}
	if i, ok := val.(int); ok {
		return int64(i), true
	}
	if f, ok := val.(float64); ok {
		return int64(f), true
	}
	return 0, false
}

// GetBool retrieves the value for the specified key as a bool.
func (ec ExecutionContext) GetBool(key string) (bool, bool) {
	val, ok := ec[key]
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// GetFloat64 retrieves the value for the specified key as a float64.
func (ec ExecutionContext) GetFloat64(key string) (float64, bool) {
	val, ok := ec[key]
	if !ok {
		return 0.0, false
	}
	f, ok := val.(float64)
	return f, ok
}

// Copy creates a shallow copy of the ExecutionContext.
func (ec ExecutionContext) Copy() ExecutionContext {
	newEC := make(ExecutionContext, len(ec))
	for k, v := range ec {
		newEC[k] = v
	}
	return newEC
}

// Remove removes the specified key from the ExecutionContext.
func (ec ExecutionContext) Remove(key string) {
	delete(ec, key)
}

// NewJobParameters creates a new instance of JobParameters.
func NewJobParameters() JobParameters {
	return JobParameters{
		Params: make(map[string]interface{}),
	}
}

// Put sets a value in JobParameters with the specified key and value.
func (jp JobParameters) Put(key string, value interface{}) {
	jp.Params[key] = value
}

// Get retrieves the value for the specified key. Returns nil if the value does not exist.
func (jp JobParameters) Get(key string) interface{} {
	val, ok := jp.Params[key]
	if !ok {
		return nil
	}
	return val
}

// GetString retrieves the value for the specified key as a string.
func (jp JobParameters) GetString(key string) (string, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt retrieves the value for the specified key as an int.
func (jp JobParameters) GetInt(key string) (int, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return 0, false
	}
	// Numbers unmarshaled from JSON arrive as float64.
	if i, ok := val.(int); ok {
		return i, true
	}
	if f, ok := val.(float64); ok {
		return int(f), true
	}
	return 0, false
}

// GetBool retrieves the value for the specified key as a bool.
func (jp JobParameters) GetBool(key string) (bool, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// Equal compares if two JobParameters are equal.
func (jp JobParameters) Equal(other JobParameters) bool {
	return reflect.DeepEqual(jp.Params, other.Params)
}

// Hash calculates the hash value of JobParameters. It converts parameters to
// a canonical JSON string before hashing to ensure order independence.
func (jp JobParameters) Hash() (string, error) {
	normalizedJSON, err := jp.toCanonicalJSON()
	if err != nil {
		return "", exception.NewBatchError("job_parameters", "Failed to marshal JobParameters to canonical JSON for hash calculation", err)
	}

	hasher := sha256.New()
	hasher.Write([]byte(normalizedJSON))
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// toCanonicalJSON converts JobParameters to a canonical JSON string with sorted keys.
func (jp JobParameters) toCanonicalJSON() (string, error) {
	var marshalCanonical func(interface{}) ([]byte, error)
	marshalCanonical = func(val interface{}) ([]byte, error) {
		if m, ok := val.(map[string]interface{}); ok {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			var sb strings.Builder
			sb.WriteString("{")
			for i, k := range keys {
				v := m[k]
				keyBytes, err := json.Marshal(k)
				if err != nil {
					return nil, err
				}
				valBytes, err := marshalCanonical(v)
				if err != nil {
					return nil, err
				}
				sb.Write(keyBytes)
				sb.WriteString(":")
				sb.Write(valBytes)
				if i < len(keys)-1 {
					sb.WriteString(",")
				}
			}
			sb.WriteString("}")
			return []byte(sb.String()), nil
		}
		return json.Marshal(val)
	}

	jsonBytes, err := marshalCanonical(jp.Params)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// String returns the string representation of JobParameters. Sensitive information is masked.
func (jp JobParameters) String() string {
	maskedParams := serialization.GetMaskedJobParametersMap(jp.Params)

	data, err := json.Marshal(maskedParams)
	if err != nil {
		return fmt.Sprintf("{[ERROR: Failed to marshal masked parameters: %v]}", err)
	}

	return string(data)
}

// NewJobInstance creates a new instance of JobInstance.
func NewJobInstance(jobName string, params JobParameters) *JobInstance {
	now := time.Now()
	hash, err := params.Hash()
	if err != nil {
		logger.Errorf("Failed to calculate JobParameters hash: %v", err)
		hash = ""
	}
	return &JobInstance{
		ID:             NewID(),
		JobName:        jobName,
		Parameters:     params,
		CreateTime:     now,
		Version:        0,
		ParametersHash: hash,
	}
}

// NewJobExecution creates a new instance of JobExecution.
func NewJobExecution(jobInstanceID string, jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               NewID(),
		JobInstanceID:    jobInstanceID,
		JobName:          jobName,
		Parameters:       params,
		StartTime:        now,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		Failures:         make(FailureList, 0),
		StepExecutions:   make([]*StepExecution, 0),
		ExecutionContext: NewExecutionContext(),
		CurrentStepName:  "",
		CancelFunc:       nil,
	}
}

// isValidJobTransition checks if the state transition for JobExecution is valid.
func isValidJobTransition(current, next JobStatus) bool {
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusStarted:
		return next == BatchStatusStopping || next == BatchStatusCompleted || next == BatchStatusFailed || next == BatchStatusAbandoned
	case BatchStatusStopping:
		return next == BatchStatusStopped || next == BatchStatusFailed || next == BatchStatusAbandoned
	case BatchStatusFailed:
		// A superseding launch may abandon a previously failed execution.
		return next == BatchStatusAbandoned
	case BatchStatusCompleted, BatchStatusStopped, BatchStatusAbandoned:
		return false
	default:
		return false
	}
}

// TransitionTo safely transitions the state of JobExecution. Note: Fields other than Status and LastUpdated must be set separately by the caller.
func (je *JobExecution) TransitionTo(newStatus JobStatus) error {
	if !isValidJobTransition(je.Status, newStatus) {
		return fmt.Errorf("JobExecution (ID: %s): Invalid state transition: %s -> %s", je.ID, je.Status, newStatus)
	}
	je.Status = newStatus
	return nil
}

// MarkAsStarted updates the JobExecution status to STARTED.
func (je *JobExecution) MarkAsStarted() {
	if err := je.TransitionTo(BatchStatusStarted); err != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to STARTED: %v", je.ID, err)
		je.Status = BatchStatusStarted
	}
	je.LastUpdated = time.Now()
}

// MarkAsCompleted updates the JobExecution status to COMPLETED.
func (je *JobExecution) MarkAsCompleted() {
	if err := je.TransitionTo(BatchStatusCompleted); err != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to COMPLETED: %v", je.ID, err)
		je.Status = BatchStatusCompleted
	}
	je.ExitStatus = ExitStatusCompleted
	now := time.Now()
	je.EndTime = &now
	je.LastUpdated = now
}

// MarkAsFailed updates the JobExecution status to FAILED and adds error information.
func (je *JobExecution) MarkAsFailed(err error) {
	if err := je.TransitionTo(BatchStatusFailed); err != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to FAILED: %v", je.ID, err)
		je.Status = BatchStatusFailed
	}
	je.ExitStatus = ExitStatusFailed
	now := time.Now()
	je.EndTime = &now
	je.LastUpdated = now
	if err != nil {
		je.AddFailureException(err)
	}
}

// MarkAsStopped updates the JobExecution status to STOPPED.
func (je *JobExecution) MarkAsStopped() {
	if err := je.TransitionTo(BatchStatusStopped); err != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to STOPPED: %v", je.ID, err)
		je.Status = BatchStatusStopped
	}
	je.ExitStatus = ExitStatusStopped
	now := time.Now()
	je.EndTime = &now
	je.LastUpdated = now
}

// MarkAsAbandoned updates the JobExecution status to ABANDONED.
func (je *JobExecution) MarkAsAbandoned() {
	if err := je.TransitionTo(BatchStatusAbandoned); err != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to ABANDONED: %v", je.ID, err)
		je.Status = BatchStatusAbandoned
	}
	je.ExitStatus = ExitStatusAbandoned
	now := time.Now()
	je.EndTime = &now
	je.LastUpdated = now
}

// AddFailureException adds error information to JobExecution. It avoids adding duplicate errors.
func (je *JobExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	errMsg := exception.ExtractErrorMessage(err)

	for _, existingErr := range je.Failures {
		if existingErr == errMsg {
			return
		}
	}

	je.Failures = append(je.Failures, errMsg)
	je.LastUpdated = time.Now()
}

// AddStepExecution adds a StepExecution to JobExecution.
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	je.StepExecutions = append(je.StepExecutions, se)
}

// TotalWarnings sums the warning counters over all step executions.
func (je *JobExecution) TotalWarnings() int64 {
	var total int64
	for _, se := range je.StepExecutions {
		total += se.WarningCount
	}
	return total
}

// NewStepExecution creates a new instance of StepExecution.
func NewStepExecution(id string, jobExecution *JobExecution, stepName string) *StepExecution {
	now := time.Now()
	se := &StepExecution{
		ID:               id,
		StepName:         stepName,
		JobExecutionID:   jobExecution.ID,
		JobExecution:     jobExecution,
		StartTime:        now,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		Failures:         make(FailureList, 0),
		ExecutionContext: NewExecutionContext(),
		LastUpdated:      now,
		Version:          0,
	}
	return se
}

// isValidStepTransition checks if the state transition for StepExecution is valid.
func isValidStepTransition(current, next JobStatus) bool {
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusStarted:
		return next == BatchStatusCompleted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusStopped, BatchStatusAbandoned:
		return false
	default:
		return false
	}
}

// TransitionTo safely transitions the state of StepExecution.
func (se *StepExecution) TransitionTo(newStatus JobStatus) error {
	if !isValidStepTransition(se.Status, newStatus) {
		return fmt.Errorf("StepExecution (ID: %s): Invalid state transition: %s -> %s", se.ID, se.Status, newStatus)
	}
	se.Status = newStatus
	return nil
}

// MarkAsStarted updates the StepExecution status to STARTED.
func (se *StepExecution) MarkAsStarted() {
	if err := se.TransitionTo(BatchStatusStarted); err != nil {
		logger.Warnf("Could not update StepExecution (ID: %s) status to STARTED: %v", se.ID, err)
		se.Status = BatchStatusStarted
	}
	se.LastUpdated = time.Now()
}

// MarkAsCompleted updates the StepExecution status to COMPLETED.
func (se *StepExecution) MarkAsCompleted() {
	if err := se.TransitionTo(BatchStatusCompleted); err != nil {
		logger.Warnf("Could not update StepExecution (ID: %s) status to COMPLETED: %v", se.ID, err)
		se.Status = BatchStatusCompleted
	}
	se.ExitStatus = ExitStatusCompleted
	now := time.Now()
	se.EndTime = &now
	se.LastUpdated = now
}

// MarkAsFailed updates the StepExecution status to FAILED and adds error information.
func (se *StepExecution) MarkAsFailed(err error) {
	if err := se.TransitionTo(BatchStatusFailed); err != nil {
		logger.Warnf("Could not update StepExecution (ID: %s) status to FAILED: %v", se.ID, err)
		se.Status = BatchStatusFailed
	}
	se.ExitStatus = ExitStatusFailed
	now := time.Now()
	se.EndTime = &now
	se.LastUpdated = now
	if err != nil {
		se.AddFailureException(err)
	}
}

// MarkAsStopped updates the StepExecution status to STOPPED.
func (se *StepExecution) MarkAsStopped() {
	if err := se.TransitionTo(BatchStatusStopped); err != nil {
		logger.Warnf("Could not update StepExecution (ID: %s) status to STOPPED: %v", se.ID, err)
		se.Status = BatchStatusStopped
	}
	se.ExitStatus = ExitStatusStopped
	now := time.Now()
	se.EndTime = &now
	se.LastUpdated = now
}

// AddFailureException adds error information to StepExecution. It avoids adding duplicate errors.
func (se *StepExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	errMsg := exception.ExtractErrorMessage(err)

	for _, existingErr := range se.Failures {
		if existingErr == errMsg {
			return
		}
	}

	se.Failures = append(se.Failures, errMsg)
	se.LastUpdated = time.Now()
}
