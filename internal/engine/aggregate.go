package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/value"
)

// Aggregation types.
const (
	AggSum   = "sum"
	AggAvg   = "avg"
	AggCount = "count"
	AggMin   = "min"
	AggMax   = "max"
)

// Aggregate computes a numeric summary of one module field. The population
// is every object carrying the module, narrowed to one object type when
// objectTypeID is non-empty. Non-numeric and missing values are excluded
// from sum/avg/min/max (never coerced to zero); count counts every present
// value, numeric or not, skipping only null/missing ones. avg
// divides by the number of contributing values, not the population size.
// Sums accumulate in decimal so money fields do not drift.
func (e *Evaluator) Aggregate(ctx context.Context, objectTypeID, moduleName, fieldKey, aggType string) (float64, error) {
	module := e.registry.GetModuleByName(moduleName)
	if module == nil {
		return 0, apperr.NotFound("module", moduleName)
	}
	if !module.HasField(fieldKey) {
		return 0, apperr.Validation(fmt.Sprintf("module %s has no field %s", moduleName, fieldKey))
	}

	records, err := e.moduleRecords(ctx, objectTypeID, module.ID)
	if err != nil {
		return 0, err
	}

	if aggType == AggCount {
		// count includes non-numeric values but not null/missing ones
		n := 0
		for _, rec := range records {
			if v, ok := rec.Data[fieldKey]; ok && v != nil {
				n++
			}
		}
		return float64(n), nil
	}

	sum := decimal.Zero
	var minVal, maxVal float64
	count := 0
	for _, rec := range records {
		f, ok := value.ToFloat(rec.Data[fieldKey])
		if !ok {
			continue
		}
		if count == 0 || f < minVal {
			minVal = f
		}
		if count == 0 || f > maxVal {
			maxVal = f
		}
		sum = sum.Add(decimal.NewFromFloat(f))
		count++
	}

	switch aggType {
	case AggSum:
		return sum.InexactFloat64(), nil
	case AggAvg:
		if count == 0 {
			return 0, nil
		}
		return sum.Div(decimal.NewFromInt(int64(count))).InexactFloat64(), nil
	case AggMin:
		return minVal, nil
	case AggMax:
		return maxVal, nil
	default:
		return 0, apperr.Validation(fmt.Sprintf("unknown aggregation type: %s", aggType))
	}
}

// CountBy computes the value distribution of one module field across all
// objects carrying the module. Values group by their display string;
// null/missing values group under the NullGroup sentinel, which stays
// distinct from a legitimate empty-string value. Order is unspecified,
// callers sort as needed.
func (e *Evaluator) CountBy(ctx context.Context, moduleName, fieldKey string) ([]ValueCount, error) {
	module := e.registry.GetModuleByName(moduleName)
	if module == nil {
		return nil, apperr.NotFound("module", moduleName)
	}
	if !module.HasField(fieldKey) {
		return nil, apperr.Validation(fmt.Sprintf("module %s has no field %s", moduleName, fieldKey))
	}

	records, err := e.moduleRecords(ctx, "", module.ID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, rec := range records {
		v, ok := rec.Data[fieldKey]
		if !ok || v == nil {
			counts[NullGroup]++
			continue
		}
		counts[value.Display(v)]++
	}

	result := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		result = append(result, ValueCount{Value: v, Count: c})
	}
	return result, nil
}

// moduleRecords fetches the aggregation population: all blobs of one module,
// optionally narrowed to objects of one type.
func (e *Evaluator) moduleRecords(ctx context.Context, objectTypeID, moduleID string) ([]metadata.ObjectModuleRecord, error) {
	if objectTypeID == "" {
		records, err := e.objects.FetchModuleData(ctx, nil, moduleID)
		if err != nil {
			return nil, apperr.DBError("fetch module data", err)
		}
		return records, nil
	}

	if e.registry.GetObjectType(objectTypeID) == nil {
		return nil, apperr.NotFound("object type", objectTypeID)
	}
	headers, _, err := e.objects.FetchHeaders(ctx, objectTypeID, 0, 0)
	if err != nil {
		return nil, apperr.DBError("fetch headers", err)
	}
	ids := make([]string, len(headers))
	for i, h := range headers {
		ids[i] = h.ID
	}
	records, err := e.objects.FetchModuleData(ctx, ids, moduleID)
	if err != nil {
		return nil, apperr.DBError("fetch module data", err)
	}
	return records, nil
}
