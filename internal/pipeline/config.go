package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/product-scraper/internal/extract"
)

// DefaultOutputPrefix names the product link column when none is configured.
const DefaultOutputPrefix = "Product"

// FamilySeparator joins family path segments.
const FamilySeparator = " > "

// ExtractionConfig is the immutable description of one scrape. It is built
// once by the caller and passed by value.
type ExtractionConfig struct {
	IdentifierColumn  string
	SearchURLTemplate string
	ProductLink       extract.Selector
	// ProductLinkBaseURL overrides the search page origin when resolving the
	// product link.
	ProductLinkBaseURL string
	Family             extract.Selector
	Image              extract.Selector
	OutputPrefix       string
	// IncludeStatus adds a Status column with each row's terminal status.
	IncludeStatus bool
}

// ConfigError is a configuration problem detected before the batch starts.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Validate reports every missing required field and a malformed search
// template. The returned error joins one *ConfigError per problem.
func (c ExtractionConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.IdentifierColumn) == "" {
		errs = append(errs, &ConfigError{Field: "identifier_column", Message: "is required"})
	}
	if strings.TrimSpace(c.SearchURLTemplate) == "" {
		errs = append(errs, &ConfigError{Field: "search_url_template", Message: "is required"})
	} else if _, err := NewSearchTemplate(c.SearchURLTemplate); err != nil {
		errs = append(errs, err)
	}
	if c.ProductLink.IsZero() {
		errs = append(errs, &ConfigError{Field: "product_link_selector", Message: "is required"})
	}
	return errors.Join(errs...)
}

// Prefix returns the output prefix, defaulted.
func (c ExtractionConfig) Prefix() string {
	if p := strings.TrimSpace(c.OutputPrefix); p != "" {
		return p
	}
	return DefaultOutputPrefix
}

// LinkColumn is the name of the product link output column.
func (c ExtractionConfig) LinkColumn() string {
	return c.Prefix() + " Link"
}
