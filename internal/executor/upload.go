package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/wire"
)

// uploadDenyPatterns are sensitive paths no upload may ever reference,
// regardless of UploadDir scoping — the same fixed, non-configurable
// boundary the corpus's own upload-path validator enforces.
var uploadDenyPatterns = []string{
	"~/.ssh", "~/.gnupg", "~/.aws", "~/.config/gcloud", "~/.azure", "~/.kube",
	"~/.npmrc", "~/.docker", "~/.bash_history", "~/.zsh_history",
	"/etc/shadow", "/etc/passwd", "/etc/sudoers", "/proc", "/sys",
	"/root/.ssh", "/root/.gnupg", "/root/.aws",
}

func resolvedDenyPatterns() []string {
	home, err := os.UserHomeDir()
	out := make([]string, 0, len(uploadDenyPatterns))
	for _, p := range uploadDenyPatterns {
		if strings.HasPrefix(p, "~/") && err == nil {
			out = append(out, filepath.Clean(filepath.Join(home, p[2:])))
		} else if !strings.HasPrefix(p, "~/") {
			out = append(out, filepath.Clean(p))
		}
	}
	return out
}

// validateUploadPath runs the clean → absolute → symlink-resolve →
// denylist → upload-dir chain before any file is read for an upload.
func validateUploadPath(rawPath, uploadDir string) (string, error) {
	cleaned := filepath.Clean(rawPath)
	if !filepath.IsAbs(cleaned) {
		return "", wire.New(wire.KindInvalidArgument, "upload file path %q must be absolute", rawPath)
	}
	resolved, err := filepath.EvalSymlinks(cleaned)
	if err != nil {
		if os.IsNotExist(err) {
			return "", wire.New(wire.KindNotFound, "upload file %q not found", rawPath)
		}
		return "", wire.Wrap(wire.KindDriverError, err, "resolve upload path %q", rawPath)
	}

	for _, deny := range resolvedDenyPatterns() {
		if pathMatchesDeny(resolved, deny) {
			return "", wire.New(wire.KindPolicyDenied, "upload file %q matches a protected path (%s)", rawPath, deny)
		}
	}
	if baseLower := strings.ToLower(filepath.Base(resolved)); baseLower == ".env" || strings.HasPrefix(baseLower, ".env.") {
		return "", wire.New(wire.KindPolicyDenied, "upload file %q matches a protected path (.env*)", rawPath)
	}

	if uploadDir != "" {
		dirWithSep := uploadDir
		if !strings.HasSuffix(dirWithSep, string(filepath.Separator)) {
			dirWithSep += string(filepath.Separator)
		}
		if resolved != uploadDir && !strings.HasPrefix(resolved, dirWithSep) {
			return "", wire.New(wire.KindPolicyDenied, "upload file %q is outside the configured upload directory", rawPath)
		}
	}

	return resolved, nil
}

func pathMatchesDeny(resolved, deny string) bool {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		resolved, deny = strings.ToLower(resolved), strings.ToLower(deny)
	}
	return resolved == deny || strings.HasPrefix(resolved, deny+string(filepath.Separator))
}

// uploadFiles reads each file, base64-encodes it, and assigns it to the
// resolved input element's files property via a synthetic DataTransfer —
// the only way to populate a file input without a native OS file chooser.
func (e *Executor) uploadFiles(ctx context.Context, s *session.Session, req *wire.Request, p setValueParams) (any, error) {
	loc, err := resolveTarget(s, p.targetParams)
	if err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}

	type fileEntry struct {
		name string
		mime string
		b64  string
	}
	var files []fileEntry
	for _, raw := range p.Files {
		resolved, err := validateUploadPath(raw, e.UploadDir)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, wire.Wrap(wire.KindDriverError, err, "read upload file %q", raw)
		}
		files = append(files, fileEntry{
			name: filepath.Base(resolved),
			mime: mimeForExt(filepath.Ext(resolved)),
			b64:  base64.StdEncoding.EncodeToString(data),
		})
	}

	var fileJS strings.Builder
	fileJS.WriteString("[")
	for i, f := range files {
		if i > 0 {
			fileJS.WriteString(",")
		}
		fmt.Fprintf(&fileJS, `{name:%s, mime:%s, b64:%s}`, jsStringLiteral(f.name), jsStringLiteral(f.mime), jsStringLiteral(f.b64))
	}
	fileJS.WriteString("]")

	body := fmt.Sprintf(`
if (!el) return {found:false};
var specs = %s;
var dt = new DataTransfer();
specs.forEach(function(spec) {
  var binary = atob(spec.b64);
  var bytes = new Uint8Array(binary.length);
  for (var i = 0; i < binary.length; i++) { bytes[i] = binary.charCodeAt(i); }
  dt.items.add(new File([bytes], spec.name, {type: spec.mime}));
});
el.files = dt.files;
el.dispatchEvent(new Event('input', {bubbles:true}));
el.dispatchEvent(new Event('change', {bubbles:true}));
return {found:true};`, fileJS.String())

	result, err := s.Backend.Evaluate(ctx, idx, buildScript(loc, body))
	if err != nil {
		return nil, err
	}
	if !foundIn(result) {
		return nil, notFoundErr(p.targetParams)
	}
	return map[string]any{"ok": true, "count": len(files)}, nil
}

func mimeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
