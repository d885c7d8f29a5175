// Package dependencies checks the optional external collaborators the
// engine talks to over the network (Ollama for embeddings, Qdrant for ANN
// acceleration) and formats the results for the CLI's doctor command.
package dependencies

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/synapsegraph/synapse/pkg/config"
)

// Status is the availability state of an optional dependency.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
	StatusDisabled    Status = "disabled"
	StatusMissing     Status = "missing"
)

// DependencyInfo describes the checked state of one collaborator.
type DependencyInfo struct {
	Name         string
	Status       Status
	Version      string
	URL          string
	Message      string
	Models       []string
	MissingItems []string
}

// CheckResult is the combined check across both optional collaborators.
type CheckResult struct {
	Ollama DependencyInfo
	Qdrant DependencyInfo
}

// Check probes Ollama and Qdrant and reports their availability.
func Check(cfg *config.Config) *CheckResult {
	return &CheckResult{
		Ollama: checkOllama(cfg),
		Qdrant: checkQdrant(cfg),
	}
}

func checkOllama(cfg *config.Config) DependencyInfo {
	info := DependencyInfo{Name: "Ollama", URL: cfg.Ollama.BaseURL}

	if !cfg.Ollama.Enabled {
		info.Status = StatusDisabled
		info.Message = "Ollama is disabled in configuration"
		return info
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Ollama.BaseURL+"/api/tags", nil)
	if err != nil {
		info.Status = StatusUnavailable
		info.Message = "failed to build request"
		return info
	}

	resp, err := client.Do(req)
	if err != nil {
		info.Status = StatusMissing
		info.Message = "Ollama is not running or not installed"
		return info
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		info.Status = StatusUnavailable
		info.Message = fmt.Sprintf("Ollama returned status %d", resp.StatusCode)
		return info
	}

	var modelsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		info.Status = StatusAvailable
		info.Message = "Ollama is running but could not list models"
		return info
	}

	modelSet := make(map[string]bool, len(modelsResp.Models))
	for _, m := range modelsResp.Models {
		info.Models = append(info.Models, m.Name)
		modelSet[m.Name] = true
		modelSet[strings.Split(m.Name, ":")[0]] = true
	}

	baseName := strings.Split(cfg.Ollama.EmbeddingModel, ":")[0]
	if !modelSet[cfg.Ollama.EmbeddingModel] && !modelSet[baseName] {
		info.MissingItems = append(info.MissingItems, cfg.Ollama.EmbeddingModel)
	}

	info.Status = StatusAvailable
	if len(info.MissingItems) > 0 {
		info.Message = fmt.Sprintf("Ollama is running but missing the embedding model: %s", strings.Join(info.MissingItems, ", "))
	} else {
		info.Message = "Ollama is running with the required embedding model"
	}
	info.Version = getOllamaVersion(ctx, cfg.Ollama.BaseURL, client)
	return info
}

func getOllamaVersion(ctx context.Context, baseURL string, client *http.Client) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/version", nil)
	if err != nil {
		return ""
	}
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	var versionResp struct {
		Version string `json:"version"`
	}
	if json.NewDecoder(resp.Body).Decode(&versionResp) == nil {
		return versionResp.Version
	}
	return ""
}

func checkQdrant(cfg *config.Config) DependencyInfo {
	info := DependencyInfo{Name: "Qdrant", URL: cfg.Qdrant.URL}

	if !cfg.Qdrant.Enabled {
		info.Status = StatusDisabled
		info.Message = "Qdrant is disabled in configuration"
		return info
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Qdrant.URL+"/collections", nil)
	if err != nil {
		info.Status = StatusUnavailable
		info.Message = "failed to build request"
		return info
	}

	resp, err := client.Do(req)
	if err != nil {
		info.Status = StatusMissing
		info.Message = "Qdrant is not running or not installed"
		return info
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		info.Status = StatusUnavailable
		info.Message = fmt.Sprintf("Qdrant returned status %d", resp.StatusCode)
		return info
	}

	info.Status = StatusAvailable
	info.Message = "Qdrant is running"
	info.Version = getQdrantVersion(ctx, cfg.Qdrant.URL, client)
	return info
}

func getQdrantVersion(ctx context.Context, baseURL string, client *http.Client) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return ""
	}
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	var versionResp struct {
		Version string `json:"version"`
	}
	if json.NewDecoder(resp.Body).Decode(&versionResp) == nil {
		return versionResp.Version
	}
	return ""
}

// AIFeaturesAvailable reports whether the embedder collaborator is usable.
func (r *CheckResult) AIFeaturesAvailable() bool {
	return r.Ollama.Status == StatusAvailable && len(r.Ollama.MissingItems) == 0
}

// ANNIndexAvailable reports whether the optional ANN index is usable.
func (r *CheckResult) ANNIndexAvailable() bool {
	return r.Qdrant.Status == StatusAvailable
}

// FormatShortWarning formats a brief inline warning for use outside doctor.
func FormatShortWarning(result *CheckResult) string {
	var warnings []string
	if result.Ollama.Status == StatusMissing || result.Ollama.Status == StatusUnavailable {
		warnings = append(warnings, "embedder unavailable")
	} else if len(result.Ollama.MissingItems) > 0 {
		warnings = append(warnings, "missing embedding model")
	}
	if result.Qdrant.Status == StatusMissing || result.Qdrant.Status == StatusUnavailable {
		warnings = append(warnings, "ANN index unavailable")
	}
	if len(warnings) == 0 {
		return ""
	}
	return fmt.Sprintf("[%s]", strings.Join(warnings, ", "))
}

// installSteps returns platform-specific Ollama install instructions.
func installSteps() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"brew install ollama", "ollama serve"}
	case "linux":
		return []string{"curl -fsSL https://ollama.ai/install.sh | sh", "ollama serve"}
	case "windows":
		return []string{"winget install Ollama.Ollama"}
	default:
		return []string{"install from https://ollama.ai", "ollama serve"}
	}
}

// FormatDoctorReport renders a detailed human-readable health report.
func FormatDoctorReport(result *CheckResult, cfg *config.Config) string {
	var buf bytes.Buffer

	buf.WriteString("Ollama (embedder)... ")
	switch result.Ollama.Status {
	case StatusAvailable:
		if len(result.Ollama.MissingItems) > 0 {
			buf.WriteString("PARTIAL\n")
		} else {
			buf.WriteString("OK\n")
		}
		buf.WriteString(fmt.Sprintf("  URL: %s\n", result.Ollama.URL))
		if result.Ollama.Version != "" {
			buf.WriteString(fmt.Sprintf("  Version: %s\n", result.Ollama.Version))
		}
		buf.WriteString(fmt.Sprintf("  Embedding model: %s\n", cfg.Ollama.EmbeddingModel))
		if len(result.Ollama.MissingItems) > 0 {
			buf.WriteString(fmt.Sprintf("  Missing: %s\n", strings.Join(result.Ollama.MissingItems, ", ")))
			buf.WriteString(fmt.Sprintf("  Pull it with: ollama pull %s\n", cfg.Ollama.EmbeddingModel))
		}
	case StatusDisabled:
		buf.WriteString("DISABLED\n")
	case StatusMissing, StatusUnavailable:
		buf.WriteString("NOT AVAILABLE\n")
		buf.WriteString(fmt.Sprintf("  %s\n", result.Ollama.Message))
		buf.WriteString("  Install steps:\n")
		for _, step := range installSteps() {
			buf.WriteString(fmt.Sprintf("    %s\n", step))
		}
	}

	buf.WriteString("\n")
	buf.WriteString("Qdrant (ANN index)... ")
	switch result.Qdrant.Status {
	case StatusAvailable:
		buf.WriteString("OK\n")
		buf.WriteString(fmt.Sprintf("  URL: %s\n", result.Qdrant.URL))
		if result.Qdrant.Version != "" {
			buf.WriteString(fmt.Sprintf("  Version: %s\n", result.Qdrant.Version))
		}
	case StatusDisabled:
		buf.WriteString("DISABLED\n")
	case StatusMissing, StatusUnavailable:
		buf.WriteString("NOT AVAILABLE\n")
		buf.WriteString(fmt.Sprintf("  %s\n", result.Qdrant.Message))
		buf.WriteString("  docker run -p 6333:6333 qdrant/qdrant\n")
	}

	return buf.String()
}
