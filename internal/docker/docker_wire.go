package docker

import (
	"strings"
	"time"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
)

func fromContainerSummary(c container.Summary) domain.ContainerHandle {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	ports := make([]domain.PortMapping, 0, len(c.Ports))
	for _, p := range c.Ports {
		ports = append(ports, domain.PortMapping{
			IP:          p.IP,
			PrivatePort: int(p.PrivatePort),
			PublicPort:  int(p.PublicPort),
			Protocol:    p.Type,
		})
	}
	return domain.ContainerHandle{
		ID:      c.ID,
		Name:    name,
		Image:   c.Image,
		State:   c.State,
		Created: time.Unix(c.Created, 0),
		Ports:   ports,
	}
}

func fromEventsMessage(msg events.Message) (domain.RawEvent, error) {
	if msg.Type != events.ContainerEventType {
		return domain.RawEvent{}, NewUnsupportedEventTypeError(msg.Type)
	}
	return domain.RawEvent{
		Status: string(msg.Action),
		From:   msg.Actor.Attributes["image"],
		Time:   eventTime(msg),
	}, nil
}

func eventTime(msg events.Message) time.Time {
	if msg.TimeNano != 0 {
		return time.Unix(0, msg.TimeNano)
	}
	return time.Unix(msg.Time, 0)
}
