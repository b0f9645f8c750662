package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ahrav/go-conclave/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

var (
	errNoModelLister = errors.New("model listing is not available for this provider")
	errUnknownModels = errors.New("configured models not served by the endpoint")
)

// ModelLister reports the model IDs an endpoint serves.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// ModelListerFunc adapts a function to ModelLister.
type ModelListerFunc func(ctx context.Context) ([]string, error)

// ListModels calls f.
func (f ModelListerFunc) ListModels(ctx context.Context) ([]string, error) { return f(ctx) }

// ModelReport is the outcome of checking models against the endpoint.
type ModelReport struct {
	Mode      configuration.ModelValidationMode `json:"mode"`
	Available []string                          `json:"available"`
	Checked   []string                          `json:"checked"`
	Unknown   []string                          `json:"unknown,omitempty"`
	// FetchError is set when the list could not be fetched in warn mode.
	FetchError string `json:"fetch_error,omitempty"`
}

// OK reports whether every checked model is served.
func (r ModelReport) OK() bool { return len(r.Unknown) == 0 && r.FetchError == "" }

// ConfiguredModels lists the evaluator model, the panel default model, every
// roster persona's model and then extra, without duplicates or empty names,
// in first-seen order.
func ConfiguredModels(cfg *configuration.Config, extra ...string) []string {
	names := []string{cfg.Evaluation.EvaluatorModel, cfg.Panel.DefaultModel}
	for _, p := range cfg.Panel.Personas {
		names = append(names, p.Model)
	}
	names = append(names, extra...)

	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// MissingModels returns the entries of models that available does not list.
func MissingModels(available, models []string) []string {
	var missing []string
	for _, m := range models {
		if !slices.Contains(available, m) {
			missing = append(missing, m)
		}
	}
	return missing
}

// UnknownModelsError reports models the endpoint does not serve as a
// KindConfigurationInvalid failure.
func UnknownModelsError(unknown []string) error {
	return llmerrors.Wrap(llmerrors.KindConfigurationInvalid, "", 0,
		fmt.Errorf("%w: %s", errUnknownModels, strings.Join(unknown, ", ")))
}

// Models fetches the model IDs the endpoint serves.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	if c.models == nil {
		return nil, errNoModelLister
	}
	return c.models.ListModels(ctx)
}

// ValidateModels checks models against the endpoint's list under the
// configured provider.model_validation mode. In strict mode an unknown model
// or a list that cannot be fetched fails with KindConfigurationInvalid. In
// warn mode both are logged and the report is returned with a nil error.
// Off skips the check without contacting the endpoint.
func (c *Client) ValidateModels(ctx context.Context, models []string) (ModelReport, error) {
	mode := c.config.Provider.ModelValidation
	if mode == "" {
		mode = configuration.DefaultModelValidation
	}
	report := ModelReport{Mode: mode, Checked: models}
	if mode == configuration.ModelValidationOff || len(models) == 0 {
		return report, nil
	}

	available, err := c.Models(ctx)
	if err != nil {
		if mode == configuration.ModelValidationStrict {
			return report, llmerrors.Wrap(llmerrors.KindConfigurationInvalid, "", 0,
				fmt.Errorf("fetch model list from %s: %w", c.config.Provider.BaseURL, err))
		}
		report.FetchError = err.Error()
		c.logger.Warn("could not fetch model list; skipping model validation",
			"base_url", c.config.Provider.BaseURL, "error", err)
		return report, nil
	}
	report.Available = available
	report.Unknown = MissingModels(available, models)
	if len(report.Unknown) == 0 {
		c.logger.Debug("configured models available", "models", models)
		return report, nil
	}

	if mode == configuration.ModelValidationStrict {
		return report, UnknownModelsError(report.Unknown)
	}
	c.logger.Warn("configured models not served by the endpoint",
		"unknown", report.Unknown, "available", len(available))
	return report, nil
}
