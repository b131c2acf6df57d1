package hcl

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/conveyor/internal/config"
	"github.com/vk/conveyor/internal/schema"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// translatePipeline converts the HCL-specific pipeline schema into the
// agnostic model.
func translatePipeline(p *schema.Pipeline) (*config.Pipeline, error) {
	out := &config.Pipeline{Name: p.Name}
	if p.On != nil {
		out.Trigger = &config.Trigger{
			Branches: p.On.Branches,
			Schedule: p.On.Schedule,
		}
	}
	if p.Concurrency != nil {
		out.Concurrency = &config.Concurrency{
			Group:            p.Concurrency.Group,
			CancelInProgress: p.Concurrency.CancelInProgress,
		}
	}
	for _, j := range p.Jobs {
		job, err := translateJob(j)
		if err != nil {
			return nil, err
		}
		out.Jobs = append(out.Jobs, job)
	}
	return out, nil
}

// translateJob converts a single job block, including its free-form matrix
// body.
func translateJob(j *schema.Job) (*config.Job, error) {
	job := &config.Job{
		Name:  j.Name,
		Needs: j.Needs,
	}
	if j.Matrix != nil {
		matrix, err := extractMatrix(j.Name, j.Matrix.Body)
		if err != nil {
			return nil, err
		}
		job.Matrix = matrix
	}
	if j.Cache != nil {
		job.Cache = &config.Cache{
			Key:         j.Cache.Key,
			RestoreKeys: j.Cache.RestoreKeys,
			Paths:       j.Cache.Paths,
		}
	}
	for _, s := range j.Steps {
		job.Steps = append(job.Steps, &config.Step{Name: s.Name, Run: s.Run})
	}
	return job, nil
}

// extractMatrix reads the matrix block's free-form attributes as axes.
// HCL attribute maps are unordered, so axes are re-sorted by their source
// position to preserve declaration order, which the expander relies on.
func extractMatrix(jobName string, body hcl.Body) (*config.Matrix, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: job %q matrix: %s", config.ErrInvalidSpec, jobName, diags.Error())
	}

	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, k int) bool {
		return ordered[i].Range.Start.Byte < ordered[k].Range.Start.Byte
	})

	matrix := &config.Matrix{}
	for _, attr := range ordered {
		values, err := evalAxisValues(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: job %q matrix axis %q: %v", config.ErrInvalidSpec, jobName, attr.Name, err)
		}
		matrix.Axes = append(matrix.Axes, config.Axis{Name: attr.Name, Values: values})
	}
	return matrix, nil
}

// evalAxisValues statically evaluates an axis expression into its string
// values. Numbers and booleans are accepted and rendered as strings.
func evalAxisValues(expr hcl.Expression) ([]string, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating values: %s", diags.Error())
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("axis must be a list, got %s", val.Type().FriendlyName())
	}

	var values []string
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		strVal, err := convert.Convert(elem, cty.String)
		if err != nil {
			return nil, fmt.Errorf("axis value is not a string: %w", err)
		}
		if strVal.IsNull() {
			return nil, fmt.Errorf("axis value is null")
		}
		values = append(values, strVal.AsString())
	}
	return values, nil
}
