package logging

import (
	"errors"
	"testing"
	"time"
)

func TestNewFields(t *testing.T) {
	fields := NewFields()
	if fields == nil {
		t.Fatal("NewFields() returned nil")
	}
	if len(fields) != 0 {
		t.Errorf("NewFields() should be empty, got %d fields", len(fields))
	}
}

func TestStandardFields_Component(t *testing.T) {
	fields := NewFields().Component("test-component")

	if fields["component"] != "test-component" {
		t.Errorf("Component() = %v, want %v", fields["component"], "test-component")
	}
}

func TestStandardFields_Operation(t *testing.T) {
	fields := NewFields().Operation("create")

	if fields["operation"] != "create" {
		t.Errorf("Operation() = %v, want %v", fields["operation"], "create")
	}
}

func TestStandardFields_Resource(t *testing.T) {
	fields := NewFields().Resource("pod", "my-pod")

	if fields["resource_type"] != "pod" {
		t.Errorf("Resource() resource_type = %v, want %v", fields["resource_type"], "pod")
	}
	if fields["resource_name"] != "my-pod" {
		t.Errorf("Resource() resource_name = %v, want %v", fields["resource_name"], "my-pod")
	}
}

func TestStandardFields_ResourceWithoutName(t *testing.T) {
	fields := NewFields().Resource("pod", "")

	if fields["resource_type"] != "pod" {
		t.Errorf("Resource() resource_type = %v, want %v", fields["resource_type"], "pod")
	}
	if _, exists := fields["resource_name"]; exists {
		t.Error("Resource() should not set resource_name when empty")
	}
}

func TestStandardFields_Duration(t *testing.T) {
	duration := 150 * time.Millisecond
	fields := NewFields().Duration(duration)

	if fields["duration_ms"] != int64(150) {
		t.Errorf("Duration() = %v, want %v", fields["duration_ms"], int64(150))
	}
}

func TestStandardFields_Error(t *testing.T) {
	err := errors.New("test error")
	fields := NewFields().Error(err)

	if fields["error"] != "test error" {
		t.Errorf("Error() = %v, want %v", fields["error"], "test error")
	}
}

func TestStandardFields_ErrorNil(t *testing.T) {
	fields := NewFields().Error(nil)

	if _, exists := fields["error"]; exists {
		t.Error("Error(nil) should not set error field")
	}
}

func TestStandardFields_UserID(t *testing.T) {
	fields := NewFields().UserID("user-123")

	if fields["user_id"] != "user-123" {
		t.Errorf("UserID() = %v, want %v", fields["user_id"], "user-123")
	}
}

func TestStandardFields_UserIDEmpty(t *testing.T) {
	fields := NewFields().UserID("")

	if _, exists := fields["user_id"]; exists {
		t.Error("UserID(\"\") should not set user_id field")
	}
}

func TestStandardFields_RequestID(t *testing.T) {
	fields := NewFields().RequestID("req-123")

	if fields["request_id"] != "req-123" {
		t.Errorf("RequestID() = %v, want %v", fields["request_id"], "req-123")
	}
}

func TestStandardFields_TraceID(t *testing.T) {
	fields := NewFields().TraceID("trace-123")

	if fields["trace_id"] != "trace-123" {
		t.Errorf("TraceID() = %v, want %v", fields["trace_id"], "trace-123")
	}
}

func TestStandardFields_StatusCode(t *testing.T) {
	fields := NewFields().StatusCode(404)

	if fields["status_code"] != 404 {
		t.Errorf("StatusCode() = %v, want %v", fields["status_code"], 404)
	}
}

func TestStandardFields_Method(t *testing.T) {
	fields := NewFields().Method("GET")

	if fields["method"] != "GET" {
		t.Errorf("Method() = %v, want %v", fields["method"], "GET")
	}
}

func TestStandardFields_URL(t *testing.T) {
	fields := NewFields().URL("https://api.example.com")

	if fields["url"] != "https://api.example.com" {
		t.Errorf("URL() = %v, want %v", fields["url"], "https://api.example.com")
	}
}

func TestStandardFields_Count(t *testing.T) {
	fields := NewFields().Count(42)

	if fields["count"] != 42 {
		t.Errorf("Count() = %v, want %v", fields["count"], 42)
	}
}

func TestStandardFields_Size(t *testing.T) {
	fields := NewFields().Size(1024)

	if fields["size_bytes"] != int64(1024) {
		t.Errorf("Size() = %v, want %v", fields["size_bytes"], int64(1024))
	}
}

func TestStandardFields_Version(t *testing.T) {
	fields := NewFields().Version("v1.2.3")

	if fields["version"] != "v1.2.3" {
		t.Errorf("Version() = %v, want %v", fields["version"], "v1.2.3")
	}
}

func TestStandardFields_AgentAndTaskAndCorrelation(t *testing.T) {
	fields := NewFields().AgentID("agent-1").TaskID("task-1").CorrelationID("corr-1")

	if fields["agent_id"] != "agent-1" {
		t.Errorf("AgentID() = %v, want agent-1", fields["agent_id"])
	}
	if fields["task_id"] != "task-1" {
		t.Errorf("TaskID() = %v, want task-1", fields["task_id"])
	}
	if fields["correlation_id"] != "corr-1" {
		t.Errorf("CorrelationID() = %v, want corr-1", fields["correlation_id"])
	}
}

func TestFields_Logrus(t *testing.T) {
	fields := NewFields().Component("x")
	lf := fields.Logrus()
	if lf["component"] != "x" {
		t.Errorf("Logrus() component = %v, want x", lf["component"])
	}
}
