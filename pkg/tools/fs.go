package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/triad-ai/triad/pkg/models"
	"github.com/triad-ai/triad/pkg/telemetry"
)

// NewFSWriteTool writes content to a sandboxed path. Violations are reported
// to telemetry and fail as PERMISSION_DENIED.
func NewFSWriteTool(sb *Sandbox, sink telemetry.Sink) Definition {
	return Definition{
		Name:        "fs_write",
		Description: "Write text content to a file inside the workspace. Relative paths only.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"content": {"type": "string"},
				"format": {"type": "string"},
				"mkdirs": {"type": "boolean"}
			},
			"required": ["path", "content"]
		}`),
		Timeout: 10 * time.Second,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)

			abs, err := sb.Resolve(path)
			if err != nil {
				sink.Emit(telemetry.Record{
					Event:  telemetry.EventWriteOutOfSandbox,
					Stage:  telemetry.StageAct,
					Detail: map[string]any{"path": path},
				})
				return nil, &models.ToolError{
					Code:    models.ErrorCodePermissionDenied,
					Message: err.Error(),
				}
			}

			mkdirs := true
			if v, ok := args["mkdirs"].(bool); ok {
				mkdirs = v
			}
			if mkdirs {
				if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
					return nil, &models.ToolError{Code: models.ErrorCodeInternal, Message: err.Error(), Retryable: true}
				}
			}

			if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
				if os.IsPermission(err) {
					return nil, &models.ToolError{Code: models.ErrorCodePermissionDenied, Message: err.Error()}
				}
				return nil, &models.ToolError{Code: models.ErrorCodeInternal, Message: err.Error(), Retryable: true}
			}

			info, err := os.Stat(abs)
			if err != nil {
				return nil, &models.ToolError{Code: models.ErrorCodeInternal, Message: err.Error(), Retryable: true}
			}
			return map[string]any{
				"path_abs":      abs,
				"bytes":         len(content),
				"modified_time": info.ModTime().Format(time.RFC3339),
			}, nil
		},
	}
}

// NewFileReadTool reads a sandboxed file.
func NewFileReadTool(sb *Sandbox) Definition {
	return Definition{
		Name:        "file_read",
		Description: "Read a text file from the workspace. Relative paths only.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"}
			},
			"required": ["path"]
		}`),
		Timeout: 10 * time.Second,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError) {
			path, _ := args["path"].(string)
			abs, err := sb.Resolve(path)
			if err != nil {
				return nil, &models.ToolError{Code: models.ErrorCodePermissionDenied, Message: err.Error()}
			}
			data, err := os.ReadFile(abs)
			if err != nil {
				if os.IsNotExist(err) {
					return nil, &models.ToolError{
						Code:    models.ErrorCodeNotFound,
						Message: fmt.Sprintf("file %q not found", path),
					}
				}
				return nil, &models.ToolError{Code: models.ErrorCodeInternal, Message: err.Error(), Retryable: true}
			}
			return map[string]any{
				"content": string(data),
				"bytes":   len(data),
			}, nil
		},
	}
}

// NewPathPlannerTool maps a logical filename to its workspace location.
func NewPathPlannerTool(sb *Sandbox) Definition {
	return Definition{
		Name:        "path_planner",
		Description: "Resolve a logical file name and type to a concrete workspace path for a later write.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"filename": {"type": "string"},
				"file_type": {"type": "string"}
			},
			"required": ["filename"]
		}`),
		Timeout: 3 * time.Second,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError) {
			filename, _ := args["filename"].(string)
			fileType, _ := args["file_type"].(string)

			name := strings.TrimSpace(filename)
			if name == "" {
				return nil, &models.ToolError{Code: models.ErrorCodeInvalidInput, Message: "filename is required"}
			}
			if fileType != "" && !strings.Contains(filepath.Base(name), ".") {
				name += "." + strings.TrimPrefix(fileType, ".")
			}
			if _, err := sb.Resolve(name); err != nil {
				return nil, &models.ToolError{Code: models.ErrorCodePermissionDenied, Message: err.Error()}
			}
			return map[string]any{
				"resolved_path": name,
			}, nil
		},
	}
}
