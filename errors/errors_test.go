package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeSyncFailed, "round trip lost")

	if err.Code() != CodeSyncFailed {
		t.Errorf("Code = %v, want %v", err.Code(), CodeSyncFailed)
	}
	if err.Category() != CategoryTransport {
		t.Errorf("Category = %v, want %v", err.Category(), CategoryTransport)
	}
	if !err.Retryable() {
		t.Error("transport errors should be retryable")
	}
	if err.Timestamp().IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestDefaultCategories(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want ErrorCategory
	}{
		{CodeMissingGlobal, CategoryProtocol},
		{CodeBindFailed, CategoryProtocol},
		{CodeSyncFailed, CategoryTransport},
		{CodeTransportClosed, CategoryTransport},
		{CodeInvalidDeclaration, CategoryUsage},
		{CodeReentrantAccess, CategoryUsage},
		{CodeInternal, CategoryInternal},
		{ErrorCode("BOGUS"), CategoryInternal},
	}

	for _, tt := range tests {
		if got := tt.code.DefaultCategory(); got != tt.want {
			t.Errorf("%s: category = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestMissingGlobal(t *testing.T) {
	err := MissingGlobal("wl_compositor")

	if !strings.Contains(err.Error(), "wl_compositor") {
		t.Errorf("message %q should name the interface", err.Error())
	}
	if err.Metadata()["interface"] != "wl_compositor" {
		t.Errorf("metadata interface = %q, want wl_compositor", err.Metadata()["interface"])
	}
	if err.Retryable() {
		t.Error("a missing global is not retryable")
	}
}

func TestWrapPreservesCode(t *testing.T) {
	inner := SyncFailed(1, fmt.Errorf("connection reset"))
	outer := Wrap(inner, "environment construction failed")

	if outer.Code() != CodeSyncFailed {
		t.Errorf("Code = %v, want %v", outer.Code(), CodeSyncFailed)
	}
	if !HasCode(outer, CodeSyncFailed) {
		t.Error("HasCode should find the code through the chain")
	}
	if !stderrors.Is(outer, inner) {
		t.Error("errors.Is should match the wrapped error")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapForeignError(t *testing.T) {
	err := Wrap(fmt.Errorf("plain"), "lifted")

	if err.Code() != CodeInternal {
		t.Errorf("Code = %v, want %v", err.Code(), CodeInternal)
	}
	if err.Unwrap() == nil {
		t.Error("cause should be preserved")
	}
}

func TestReentrantAccess(t *testing.T) {
	err := ReentrantAccess("WithExtras")

	if err.Category() != CategoryUsage {
		t.Errorf("Category = %v, want %v", err.Category(), CategoryUsage)
	}
	if err.Metadata()["op"] != "WithExtras" {
		t.Errorf("metadata op = %q, want WithExtras", err.Metadata()["op"])
	}
}

func TestMarshalJSON(t *testing.T) {
	err := BindFailed("wl_output", 5, fmt.Errorf("version too high"))

	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("Marshal error: %v", jerr)
	}

	var decoded map[string]interface{}
	if jerr := json.Unmarshal(data, &decoded); jerr != nil {
		t.Fatalf("Unmarshal error: %v", jerr)
	}
	if decoded["code"] != "BIND_FAILED" {
		t.Errorf("code = %v, want BIND_FAILED", decoded["code"])
	}
	if decoded["cause"] != "version too high" {
		t.Errorf("cause = %v, want version too high", decoded["cause"])
	}
}

func TestCategoryOf(t *testing.T) {
	if got := CategoryOf(fmt.Errorf("plain")); got != CategoryInternal {
		t.Errorf("CategoryOf(plain) = %v, want %v", got, CategoryInternal)
	}
	if got := CategoryOf(MissingGlobal("wl_shm")); got != CategoryProtocol {
		t.Errorf("CategoryOf = %v, want %v", got, CategoryProtocol)
	}
}
