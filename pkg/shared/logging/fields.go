// Package logging provides a fluent builder for structured log fields
// over logrus, so call sites read as a sentence instead of a map
// literal.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Fields is a chainable logrus.Fields builder with standard keys for
// the fields every component logs: component/operation identity,
// resource references, durations, error causes, and request metadata.
type Fields logrus.Fields

// NewFields returns an empty Fields ready for chaining.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(op string) Fields {
	f["operation"] = op
	return f
}

func (f Fields) Resource(resourceType, resourceName string) Fields {
	f["resource_type"] = resourceType
	if resourceName != "" {
		f["resource_name"] = resourceName
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	if id != "" {
		f["request_id"] = id
	}
	return f
}

func (f Fields) TraceID(id string) Fields {
	if id != "" {
		f["trace_id"] = id
	}
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

// AgentID tags the field set with the acting agent's identity.
func (f Fields) AgentID(id string) Fields {
	if id != "" {
		f["agent_id"] = id
	}
	return f
}

// TaskID tags the field set with the task the log line concerns.
func (f Fields) TaskID(id string) Fields {
	if id != "" {
		f["task_id"] = id
	}
	return f
}

// CorrelationID tags the field set with a cross-event correlation id.
func (f Fields) CorrelationID(id string) Fields {
	if id != "" {
		f["correlation_id"] = id
	}
	return f
}

// Logrus converts the builder to a logrus.Fields for passing to
// WithFields.
func (f Fields) Logrus() logrus.Fields {
	return logrus.Fields(f)
}
