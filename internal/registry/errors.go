package registry

import "fmt"

// RegistryRefreshError is logged when listing the runtime's containers fails. The previous set stays visible.
type RegistryRefreshError struct {
	Err error
}

func (e *RegistryRefreshError) Error() string {
	return fmt.Sprintf("registry refresh failed: %v", e.Err)
}

func (e *RegistryRefreshError) Unwrap() error {
	return e.Err
}

func NewRegistryRefreshError(err error) *RegistryRefreshError {
	return &RegistryRefreshError{Err: err}
}

// MalformedWorkloadError means a container could not be described as a workload.
type MalformedWorkloadError struct {
	ContainerID string
	Reason      string
}

func (e *MalformedWorkloadError) Error() string {
	return fmt.Sprintf("container %s is not a workload: %s", e.ContainerID, e.Reason)
}

func NewMalformedWorkloadError(containerID, reason string) *MalformedWorkloadError {
	return &MalformedWorkloadError{ContainerID: containerID, Reason: reason}
}
