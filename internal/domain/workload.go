package domain

import (
	"fmt"
	"time"
)

// PortMapping is one published port of a container as reported by the runtime.
type PortMapping struct {
	IP          string
	PrivatePort int
	PublicPort  int
	Protocol    string
}

// ContainerHandle is the runtime-neutral view of a listed container.
type ContainerHandle struct {
	ID      string
	Name    string
	Image   string
	State   string
	Created time.Time
	Ports   []PortMapping
}

// Workload is one observed application instance.
type Workload struct {
	ID           string    `json:"id"`
	Name         string    `json:"appName"` // image name
	PublicPort   int       `json:"publicPort"`
	DiscoveredAt time.Time `json:"discoveredAt"`
}

func (w Workload) Render() string {
	return fmt.Sprintf("%s (id=%s, port=%d)", w.Name, shortID(w.ID), w.PublicPort)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
