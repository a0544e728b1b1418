package toolexec

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/loopagent/core/pkg/masking"
	"github.com/loopagent/core/pkg/models"
)

// FileReadHandler implements FILE_READ: read whole file, capped at MaxReadSize.
type FileReadHandler struct {
	MaxReadSize int64
	Masker      *masking.Service
}

func (h *FileReadHandler) Execute(_ context.Context, task *models.AgentTask) (*models.TaskResult, error) {
	path := task.Parameters["file_path"]
	if path == "" {
		return nil, fmt.Errorf("file_read: missing file_path parameter")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	limit := h.MaxReadSize
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &models.TaskResult{Output: h.Masker.Mask(string(data))}, nil
}

// FileWriteHandler implements FILE_WRITE: sanitise path, atomic write.
type FileWriteHandler struct {
	WorkDir string
	Masker  *masking.Service
}

func (h *FileWriteHandler) Execute(_ context.Context, task *models.AgentTask) (*models.TaskResult, error) {
	path := task.Parameters["file_path"]
	content := task.Parameters["content"]
	if content == "" {
		content = "// placeholder content: the action did not supply any"
	}

	safePath := SanitizePath(path, task.Description, h.WorkDir)
	if !filepath.IsAbs(safePath) {
		var err error
		safePath, err = filepath.Abs(safePath)
		if err != nil {
			return nil, fmt.Errorf("resolve absolute path: %w", err)
		}
	}

	if err := WriteAtomic(safePath, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", safePath, err)
	}

	return &models.TaskResult{
		Output:       safePath,
		FilesCreated: []string{safePath},
	}, nil
}

// FileCopyHandler implements FILE_COPY: create parents, honour overwrite/createDir.
type FileCopyHandler struct{}

func (h *FileCopyHandler) Execute(_ context.Context, task *models.AgentTask) (*models.TaskResult, error) {
	src := task.Parameters["source_path"]
	dst := task.Parameters["target_path"]
	if src == "" || dst == "" {
		return nil, fmt.Errorf("file_copy: source_path and target_path are required")
	}

	overwrite := task.Parameters["overwrite"] == "true"
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return nil, fmt.Errorf("file_copy: target %s already exists and overwrite is false", dst)
		}
	}

	if task.Parameters["create_dir"] != "false" {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, fmt.Errorf("create parent directories: %w", err)
		}
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", src, err)
	}
	if err := WriteAtomic(dst, data, 0o644); err != nil {
		return nil, fmt.Errorf("write target %s: %w", dst, err)
	}

	return &models.TaskResult{Output: dst, FilesCreated: []string{dst}}, nil
}

// FileDeleteHandler implements FILE_DELETE: delete file or directory tree.
type FileDeleteHandler struct{}

func (h *FileDeleteHandler) Execute(_ context.Context, task *models.AgentTask) (*models.TaskResult, error) {
	path := task.Parameters["file_path"]
	if path == "" {
		return nil, fmt.Errorf("file_delete: missing file_path parameter")
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("delete %s: %w", path, err)
	}
	return &models.TaskResult{Output: fmt.Sprintf("deleted %s", path)}, nil
}
