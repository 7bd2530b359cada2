package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/akhramovs/tempora/internal/common"
	"github.com/akhramovs/tempora/internal/server/dataservice"
	"github.com/akhramovs/tempora/internal/server/store"
)

// Resource mounts the uniform CRUD surface of one data service under a
// route group. Id-addressed reads and writes verify the row's owner against
// the authenticated user; foreign rows are indistinguishable from missing
// ones.
type Resource[T store.Row, F any, P any] struct {
	svc      *dataservice.Service[T, F, P]
	validate *validator.Validate
}

func NewResource[T store.Row, F any, P any](svc *dataservice.Service[T, F, P], validate *validator.Validate) *Resource[T, F, P] {
	return &Resource[T, F, P]{svc: svc, validate: validate}
}

func (res *Resource[T, F, P]) Mount(r chi.Router) {
	r.Get("/getAll", res.getAll)
	r.Get("/get/{id}", res.get)
	r.Post("/create", res.create)
	r.Post("/createBulk", res.createBulk)
	r.Put("/update/{id}", res.update)
	r.Delete("/delete/{id}", res.delete)
	r.Delete("/deleteAll", res.deleteAll)
	r.Post("/clearCache", res.clearCache)
	if res.svc.VectorEnabled() {
		r.Get("/search", res.search)
	}
}

func (res *Resource[T, F, P]) getAll(w http.ResponseWriter, r *http.Request) {
	rows, err := res.svc.GetAll(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, rows)
}

// owned loads a row by id and hides rows belonging to other users.
func (res *Resource[T, F, P]) owned(r *http.Request, id string) (T, error) {
	row, err := res.svc.Get(r.Context(), id)
	if err != nil {
		var zero T
		return zero, err
	}
	if row.RowUserID() != userID(r) {
		var zero T
		return zero, common.ErrNotFound
	}
	return row, nil
}

func (res *Resource[T, F, P]) get(w http.ResponseWriter, r *http.Request) {
	row, err := res.owned(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, row)
}

func (res *Resource[T, F, P]) create(w http.ResponseWriter, r *http.Request) {
	var form F
	if err := decodeBody(r, res.validate, &form); err != nil {
		writeError(w, err)
		return
	}
	row, err := res.svc.Create(r.Context(), userID(r), form)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, row)
}

func (res *Resource[T, F, P]) createBulk(w http.ResponseWriter, r *http.Request) {
	var forms []F
	if err := json.NewDecoder(r.Body).Decode(&forms); err != nil {
		writeError(w, common.ErrValidation)
		return
	}
	for i := range forms {
		if err := res.validate.Struct(&forms[i]); err != nil {
			writeError(w, err)
			return
		}
	}
	rows, err := res.svc.CreateBulk(r.Context(), userID(r), forms)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, rows)
}

func (res *Resource[T, F, P]) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := res.owned(r, id); err != nil {
		writeError(w, err)
		return
	}

	var patch P
	if err := decodeBody(r, res.validate, &patch); err != nil {
		writeError(w, err)
		return
	}
	row, err := res.svc.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, row)
}

func (res *Resource[T, F, P]) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := res.owned(r, id); err != nil {
		writeError(w, err)
		return
	}
	row, err := res.svc.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, row)
}

func (res *Resource[T, F, P]) deleteAll(w http.ResponseWriter, r *http.Request) {
	if err := res.svc.DeleteAll(r.Context(), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, nil)
}

func (res *Resource[T, F, P]) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := res.svc.ClearCache(r.Context(), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, nil)
}

func (res *Resource[T, F, P]) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "missing query parameter q", IsFormError: true})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := res.svc.Search(r.Context(), userID(r), query, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, rows)
}
