package action

import (
	"context"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

const defaultFilterLimit = 3

// FilterParams are the params of a data_filter node.
type FilterParams struct {
	Limit     FlexInt `json:"limit"`
	Condition string  `json:"condition"`
}

// DataFilter keeps the first N (matching) items of a sequence. Inputs that
// are not sequences pass through unchanged.
type DataFilter struct {
	logger *zap.Logger
}

func NewDataFilter(logger *zap.Logger) *DataFilter {
	return &DataFilter{logger: logger}
}

func (f *DataFilter) Kind() Kind { return KindDataFilter }

func (f *DataFilter) Handle(ctx context.Context, params map[string]any, input any) (any, error) {
	var p FilterParams
	if err := DecodeParams(params, &p); err != nil {
		f.logger.Warn("data_filter params ignored", zap.Error(err))
		p = FilterParams{}
	}
	return f.Run(ctx, p, input), nil
}

// Run applies the filter. The result keeps the input's slice type.
func (f *DataFilter) Run(_ context.Context, p FilterParams, input any) any {
	if input == nil {
		return nil
	}
	v := reflect.ValueOf(input)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return input
	}

	// 非正数（含负数）一律按默认值处理，不从尾部裁剪
	limit := int(p.Limit)
	if limit <= 0 {
		limit = defaultFilterLimit
	}
	cond := strings.ToLower(strings.TrimSpace(p.Condition))

	if cond == "" && v.Kind() == reflect.Slice {
		if v.Len() <= limit {
			return input
		}
		return v.Slice3(0, limit, limit).Interface()
	}

	out := reflect.MakeSlice(reflect.SliceOf(v.Type().Elem()), 0, min(limit, v.Len()))
	for i := 0; i < v.Len() && out.Len() < limit; i++ {
		item := v.Index(i)
		if cond != "" && !strings.Contains(strings.ToLower(Stringify(item.Interface())), cond) {
			continue
		}
		out = reflect.Append(out, item)
	}
	return out.Interface()
}
