// Package serialization provides utilities for serializing and deserializing
// the data structures persisted with batch executions, such as JobParameters
// and ExecutionContext.
package serialization

import (
	"encoding/json"

	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// GetMaskedJobParametersMap creates a copy of JobParameters and masks
// sensitive values based on configuration.
func GetMaskedJobParametersMap(params map[string]interface{}) map[string]interface{} {
	if len(params) == 0 {
		return map[string]interface{}{}
	}

	maskedParams := make(map[string]interface{}, len(params))
	for k, v := range params {
		maskedParams[k] = v
	}

	maskedKeys := config.GetMaskedParameterKeys()
	for _, key := range maskedKeys {
		if _, ok := maskedParams[key]; ok {
			maskedParams[key] = "********"
		}
	}
	return maskedParams
}

// MarshalExecutionContext serializes an ExecutionContext map into a JSON byte slice.
func MarshalExecutionContext(ctx map[string]interface{}) ([]byte, error) {
	module := "serialization"

	if ctx == nil {
		logger.Debugf("ExecutionContext is nil. Returning empty JSON object.")
		return []byte("{}"), nil
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		logger.Errorf("Failed to serialize ExecutionContext: %v", err)
		return nil, exception.NewBatchError(module, "Failed to serialize ExecutionContext", err)
	}
	return data, nil
}

// UnmarshalExecutionContext deserializes a JSON byte slice into an ExecutionContext map.
func UnmarshalExecutionContext(data []byte, ctx *map[string]interface{}) error {
	module := "serialization"

	if *ctx == nil {
		*ctx = make(map[string]interface{})
	} else {
		for k := range *ctx {
			delete(*ctx, k)
		}
	}

	if len(data) == 0 || string(data) == "null" || string(data) == "{}" {
		return nil
	}

	err := json.Unmarshal(data, ctx)
	if err != nil {
		logger.Errorf("Failed to deserialize ExecutionContext: %v", err)
		return exception.NewBatchError(module, "Failed to deserialize ExecutionContext", err)
	}
	return nil
}

// MarshalJobParameters serializes a JobParameters map into a JSON byte slice,
// masking sensitive keys as configured.
func MarshalJobParameters(params map[string]interface{}) ([]byte, error) {
	module := "serialization"

	maskedParams := GetMaskedJobParametersMap(params)

	if len(maskedParams) == 0 {
		return []byte("{}"), nil
	}

	data, err := json.Marshal(maskedParams)
	if err != nil {
		logger.Errorf("Failed to serialize JobParameters: %v", err)
		return nil, exception.NewBatchError(module, "Failed to serialize JobParameters", err)
	}
	return data, nil
}

// UnmarshalJobParameters deserializes a JSON byte slice into a JobParameters map.
func UnmarshalJobParameters(data []byte, params *map[string]interface{}) error {
	module := "serialization"

	if len(data) == 0 || string(data) == "null" {
		*params = make(map[string]interface{})
		return nil
	}

	if *params == nil {
		*params = make(map[string]interface{})
	} else {
		for k := range *params {
			delete(*params, k)
		}
	}

	err := json.Unmarshal(data, params)
	if err != nil {
		logger.Errorf("Failed to deserialize JobParameters: %v", err)
		return exception.NewBatchError(module, "Failed to deserialize JobParameters", err)
	}
	return nil
}

// MarshalFailures serializes a slice of failure messages into a JSON byte slice.
func MarshalFailures(failures []string) ([]byte, error) {
	module := "serialization"

	if failures == nil {
		return []byte("[]"), nil
	}

	data, err := json.Marshal(failures)
	if err != nil {
		logger.Errorf("Failed to serialize Failures: %v", err)
		return nil, exception.NewBatchError(module, "Failed to serialize Failures", err)
	}
	return data, nil
}

// UnmarshalFailures deserializes a JSON byte slice into a slice of failure messages.
func UnmarshalFailures(data []byte, msgs *[]string) error {
	module := "serialization"

	if len(data) == 0 || string(data) == "null" {
		*msgs = []string{}
		return nil
	}

	err := json.Unmarshal(data, msgs)
	if err != nil {
		logger.Errorf("Failed to deserialize Failures: %v", err)
		return exception.NewBatchError(module, "Failed to deserialize Failures", err)
	}

	return nil
}
