package controllers

import (
	"net/http"
	"strings"

	"github.com/liminara/storefront/api/responses"
	"github.com/liminara/storefront/api/validators"
	product "github.com/liminara/storefront/internal/products"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/logger"
)

const maxSearchLength = 100

// ProductList returns active products, optionally filtered by ?q=.
func ProductList(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.ListProducts(ctx, product.ListProductsInput{
			Search: validators.SanitizeString(strings.TrimSpace(r.URL.Query().Get("q")), maxSearchLength),
			Params: params,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ProductDetail returns a single active product.
func ProductDetail(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		dto, err := svc.GetProduct(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
