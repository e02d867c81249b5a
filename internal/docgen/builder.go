// Package docgen builds the endpoint documents and index from the metadata
// catalog and example responses.
package docgen

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mcncl/enphase-api/internal/analyzer"
	"github.com/mcncl/enphase-api/internal/config"
	"github.com/mcncl/enphase-api/internal/errors"
	"github.com/mcncl/enphase-api/internal/gateway"
	"github.com/mcncl/enphase-api/internal/generator"
	"github.com/mcncl/enphase-api/internal/logging"
	"github.com/mcncl/enphase-api/internal/metadata"
	"github.com/mcncl/enphase-api/internal/models"
	"github.com/mcncl/enphase-api/internal/schema"
)

// Builder turns catalog entries into documents.
type Builder struct {
	analyzer  *analyzer.Analyzer
	generator *generator.Generator
	typeMap   metadata.TypeMap
	source    SampleSource
	sink      Sink
	log       logrus.FieldLogger
}

// Option configures a Builder.
type Option func(*Builder)

// WithSource sets where live example responses come from. Without one,
// examples lacking a canned response are skipped.
func WithSource(source SampleSource) Option {
	return func(b *Builder) {
		b.source = source
	}
}

// WithSink sets where documents are written.
func WithSink(sink Sink) Option {
	return func(b *Builder) {
		b.sink = sink
	}
}

// WithTypeMap sets the custom types shared by every endpoint.
func WithTypeMap(typeMap metadata.TypeMap) Option {
	return func(b *Builder) {
		b.typeMap = typeMap
	}
}

// WithLogger sets the logger warnings and progress go to.
func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Builder) {
		b.log = log
	}
}

// NewBuilder creates a Builder writing below cfg.OutputDir.
func NewBuilder(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{
		analyzer:  analyzer.NewAnalyzerWithConfig(cfg),
		generator: generator.NewGeneratorWithConfig(cfg),
		sink:      FileSink{Root: cfg.OutputDir},
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build writes the document of every endpoint and then the index. A failing
// endpoint does not stop the others; all failures are returned together.
func (b *Builder) Build(ctx context.Context, catalog *metadata.Catalog) error {
	var errs []error
	written := 0

	for _, key := range catalog.Keys() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		e, _ := catalog.Get(key)
		ok, err := b.BuildEndpoint(ctx, key, e)
		if err != nil {
			b.log.WithField("endpoint", key).WithError(err).Error("Failed to document endpoint")
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		if ok {
			written++
		}
	}

	if err := b.sink.Write(generator.IndexFile, []byte(b.generator.Index(catalog))); err != nil {
		b.log.WithField("path", generator.IndexFile).WithError(err).Error("Failed to write index")
		errs = append(errs, err)
	}

	b.log.Infof("Wrote %d of %d endpoint documents", written, catalog.Len())
	return stderrors.Join(errs...)
}

// BuildEndpoint renders and writes one endpoint's document. It reports
// false when the endpoint has no document path.
func (b *Builder) BuildEndpoint(ctx context.Context, key string, e *metadata.Endpoint) (bool, error) {
	if e.Documentation == "" {
		b.log.WithField("endpoint", key).Warnf("Skipping '%s' due to lack of 'documentation' filepath.", key)
		return false, nil
	}

	page, err := b.Page(ctx, key, e)
	if err != nil {
		return false, err
	}

	doc, err := b.generator.Render(page)
	if err != nil {
		return false, err
	}

	if err := b.sink.Write(e.Documentation, []byte(doc)); err != nil {
		return false, err
	}
	b.log.WithFields(logrus.Fields{"endpoint": key, "path": e.Documentation}).Debug("Wrote document")
	return true, nil
}

// Page gathers the examples of an endpoint, infers the request and response
// tables from them and folds in the catalog's overrides.
func (b *Builder) Page(ctx context.Context, key string, e *metadata.Endpoint) (generator.Page, error) {
	log := b.log.WithField("endpoint", key)

	page := generator.Page{
		Key:      key,
		Endpoint: e,
		TypeMap:  b.typeMap.With(e.TypeMap),
	}
	if e.Description == nil {
		log.Warnf("Missing description for '%s'.", key)
	}

	r := e.Request
	if r == nil {
		return page, nil
	}

	var responseOverrides *schema.TableSet
	if e.Response != nil {
		responseOverrides = e.Response.FieldMap
	}

	var request, response *schema.TableSet
	if r.Examples != nil {
		page.Examples = make([]generator.Example, 0, len(r.Examples))
	}

	for _, ex := range r.Examples {
		exLog := log.WithField("example", ex.Name)

		example, ok, err := b.example(ctx, key, r, ex, exLog)
		if err != nil {
			return generator.Page{}, err
		}
		if !ok {
			continue
		}

		// Null, empty and zero responses say nothing about the schema.
		if models.Truthy(example.Response) {
			set, err := b.analyzer.Infer(example.Response, schema.RootTable, responseOverrides)
			if err != nil {
				return generator.Page{}, wrapAnalysis(ex.Name, err)
			}
			if response, err = mergeExamples(response, set); err != nil {
				return generator.Page{}, wrapAnalysis(ex.Name, err)
			}
		}

		if example.HasRequest {
			set, err := b.analyzer.Infer(example.Request, schema.RootTable, r.FieldMap)
			if err != nil {
				return generator.Page{}, wrapAnalysis(ex.Name, err)
			}
			if request, err = mergeExamples(request, set); err != nil {
				return generator.Page{}, wrapAnalysis(ex.Name, err)
			}
		}

		if ex.Name == "" {
			log.Warnf("Skipping a '%s' example as missing its name.", key)
			continue
		}
		page.Examples = append(page.Examples, example)
	}

	var err error
	if page.Request, err = withOverrides(request, r.FieldMap); err != nil {
		return generator.Page{}, errors.NewAnalysisError("applying the request field_map", err)
	}
	if page.Response, err = withOverrides(response, responseOverrides); err != nil {
		return generator.Page{}, errors.NewAnalysisError("applying the response field_map", err)
	}
	return page, nil
}

// example resolves the response of one example. It reports false, after
// logging why, when the example has no response to show.
func (b *Builder) example(ctx context.Context, key string, r *metadata.Request, ex metadata.Example, log logrus.FieldLogger) (generator.Example, bool, error) {
	out := generator.Example{Example: ex, BaseURI: r.URI}

	value, ok, err := ex.RequestValue()
	if err != nil {
		return out, false, err
	}
	out.Request, out.HasRequest = value, ok

	canned, ok, err := ex.CannedResponse()
	if err != nil {
		return out, false, err
	}
	if ok {
		out.Response = canned
		out.Raw = ex.ResponseRaw
		return out, true, nil
	}

	if ex.Disabled {
		log.Warnf("Skipping disabled example '%s' for '%s'.", ex.Name, key)
		return out, false, nil
	}
	if b.source == nil {
		log.Warnf("Skipping example '%s' for '%s' as no sample JSON defined and running offline.", ex.Name, key)
		return out, false, nil
	}

	req := gateway.Request{
		Method: ex.MethodOrDefault(),
		Path:   ex.Target(r.URI),
		Raw:    ex.ResponseRaw.Set,
	}
	switch {
	case ex.RequestForm.Set:
		req.Form = ex.RequestForm.Value
	case out.HasRequest:
		req.JSON = []byte(ex.RequestJSON.Value)
	}

	sample, err := b.source.Sample(ctx, Fetch{Endpoint: key, Example: ex.Name, Request: req})
	if stderrors.Is(err, errors.ErrNoSampleSource) {
		log.Warnf("Skipping example '%s' for '%s' as no sample JSON is cached and running offline.", ex.Name, key)
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}

	if sample.Raw {
		out.Raw = metadata.NewText(sample.Body)
		return out, true, nil
	}
	if out.Response, err = sample.Value(); err != nil {
		return out, false, errors.NewParsingError(fmt.Sprintf("response of example %q", ex.Name), err)
	}
	return out, true, nil
}

func mergeExamples(previous, current *schema.TableSet) (*schema.TableSet, error) {
	if previous == nil {
		return current, nil
	}
	return schema.Merge(previous, current, schema.MarkFields)
}

func withOverrides(inferred, overrides *schema.TableSet) (*schema.TableSet, error) {
	switch {
	case inferred == nil:
		return overrides, nil
	case overrides == nil:
		return inferred, nil
	}
	return schema.Merge(inferred, overrides, schema.MarkNone)
}

func wrapAnalysis(example string, err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return errors.NewAnalysisError(fmt.Sprintf("example %q", example), err)
}
