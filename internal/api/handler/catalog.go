package handler

import (
	"context"
	"net/http"

	"github.com/beexponential/insights/internal/api/schema"
	"github.com/beexponential/insights/internal/catalog"
	huma "github.com/beexponential/insights/internal/huma"
	"github.com/beexponential/insights/internal/querybuilder"
)

// CatalogHandler serves the tables, columns and calculated fields offered
// to widget configuration.
type CatalogHandler struct {
	Catalog catalog.Catalog
}

type listTablesParams struct {
	Schema string `query:"schema"`
}

type tablesOutput struct{ Body schema.Tables }

type listColumnsParams struct {
	Table string `path:"table"`
	Type  string `query:"type" doc:"numeric matches every numeric type, anything else an exact data type"`
}

type columnsOutput struct{ Body schema.ColumnList }

type fieldsOutput struct{ Body schema.CalculatedFields }

// RegisterCatalog registers catalog endpoints.
func RegisterCatalog(api huma.API, h *CatalogHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "listCatalogTables",
		Method:      http.MethodGet,
		Path:        "/v1/catalog/tables",
		Summary:     "List reporting tables",
		Tags:        []string{"Catalog"},
	}, h.listTables)
	huma.Register(api, huma.Operation{
		OperationID: "listCatalogColumns",
		Method:      http.MethodGet,
		Path:        "/v1/catalog/tables/{table}/columns",
		Summary:     "List columns of a table",
		Tags:        []string{"Catalog"},
	}, h.listColumns)
	huma.Register(api, huma.Operation{
		OperationID: "listCalculatedFields",
		Method:      http.MethodGet,
		Path:        "/v1/catalog/calculated-fields",
		Summary:     "List calculated fields",
		Tags:        []string{"Catalog"},
	}, h.listFields)
}

func (h *CatalogHandler) listTables(ctx context.Context, p *listTablesParams) (*tablesOutput, error) {
	tables, err := h.Catalog.ListTables(ctx, p.Schema)
	if err != nil {
		return nil, apiError("list tables", err)
	}
	out := &tablesOutput{}
	out.Body.Tables = nonNil(tables)
	return out, nil
}

func (h *CatalogHandler) listColumns(ctx context.Context, p *listColumnsParams) (*columnsOutput, error) {
	if !querybuilder.ValidTable(p.Table) {
		return nil, huma.Error422("path.table", "invalid table identifier")
	}
	cols, err := h.Catalog.ListColumns(ctx, p.Table, p.Type)
	if err != nil {
		return nil, apiError("list columns", err)
	}
	out := &columnsOutput{}
	out.Body.Table = p.Table
	out.Body.Columns = nonNil(cols)
	return out, nil
}

func (h *CatalogHandler) listFields(ctx context.Context, _ *struct{}) (*fieldsOutput, error) {
	fields, err := h.Catalog.ListCalculatedFields(ctx)
	if err != nil {
		return nil, apiError("list calculated fields", err)
	}
	out := &fieldsOutput{}
	out.Body.Fields = nonNil(fields)
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
