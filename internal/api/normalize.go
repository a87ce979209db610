package api

import (
	"math"
	"reflect"
	"sort"

	"github.com/franzego/registry-backoffice/internal/models"
)

// wrapperKeys are the keys the backend nests collections under, in the
// order they are tried.
var wrapperKeys = []string{
	"items", "data", "results", "value", "values", "records",
	"rows", "entries", "notifications", "list", "collection", "payload",
}

// ExtractArray finds the collection inside payload. It never fails: a
// payload without any array yields an empty slice.
func ExtractArray(payload any) []any {
	if arr, ok := extractArray(payload, map[uintptr]struct{}{}); ok {
		return arr
	}
	return []any{}
}

func extractArray(v any, seen map[uintptr]struct{}) ([]any, bool) {
	if arr, ok := AsArray(v); ok {
		return arr, true
	}
	obj, ok := AsObject(v)
	if !ok {
		return nil, false
	}
	id := reflect.ValueOf(obj).Pointer()
	if _, visited := seen[id]; visited {
		return nil, false
	}
	seen[id] = struct{}{}

	for _, k := range wrapperKeys {
		if arr, ok := AsArray(obj[k]); ok {
			return arr, true
		}
	}
	// One level down only: a wrapper object holding a wrapper array.
	for _, k := range wrapperKeys {
		if inner, ok := AsObject(obj[k]); ok {
			if arr, ok := wrappedArray(inner); ok {
				return arr, true
			}
		}
	}

	keys := sortedKeys(obj)
	for _, k := range keys {
		if arr, ok := AsArray(obj[k]); ok {
			return arr, true
		}
	}
	for _, k := range keys {
		if inner, ok := AsObject(obj[k]); ok {
			if arr, ok := extractArray(inner, seen); ok {
				return arr, true
			}
		}
	}
	return nil, false
}

func wrappedArray(obj map[string]any) ([]any, bool) {
	for _, k := range wrapperKeys {
		if arr, ok := AsArray(obj[k]); ok {
			return arr, true
		}
	}
	return nil, false
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizePage reads a paged response, filling whatever the backend left
// out. A malformed payload gives an empty first page.
func NormalizePage(payload any) models.Page[any] {
	return normalizePage(payload, 0)
}

func normalizePage(payload any, depth int) models.Page[any] {
	page := models.Page[any]{Items: []any{}, PageNumber: 1}

	if arr, ok := AsArray(payload); ok {
		page.Items = arr
		page.TotalCount = len(arr)
		page.PageSize = len(arr)
		return finishPage(page, nil)
	}
	obj, ok := AsObject(payload)
	if !ok {
		return page
	}

	found := false
	for _, k := range []string{"items", "data", "results"} {
		if arr, ok := AsArray(obj[k]); ok {
			page.Items = arr
			found = true
			break
		}
	}
	// {success: true, data: {items: [...], totalCount: n}} envelopes.
	if !found && depth == 0 {
		if inner, ok := AsObject(obj["data"]); ok {
			return normalizePage(inner, depth+1)
		}
	}

	page.TotalCount = len(page.Items)
	if n, ok := IntField(obj, "totalCount", "count", "total"); ok && n >= 0 {
		page.TotalCount = n
	}
	if n, ok := IntField(obj, "pageNumber", "page"); ok && n > 0 {
		page.PageNumber = n
	}
	page.PageSize = len(page.Items)
	if n, ok := IntField(obj, "pageSize", "limit"); ok && n >= 0 {
		page.PageSize = n
	}
	return finishPage(page, obj)
}

func finishPage(page models.Page[any], obj map[string]any) models.Page[any] {
	if n, ok := IntField(obj, "totalPages"); ok && n >= 0 {
		page.TotalPages = n
	} else if page.PageSize > 0 {
		page.TotalPages = int(math.Ceil(float64(page.TotalCount) / float64(page.PageSize)))
	}

	if b, ok := BoolField(obj, "hasPreviousPage"); ok {
		page.HasPreviousPage = b
	} else {
		page.HasPreviousPage = page.PageNumber > 1
	}
	if b, ok := BoolField(obj, "hasNextPage"); ok {
		page.HasNextPage = b
	} else {
		page.HasNextPage = page.PageNumber < page.TotalPages
	}
	return page
}
