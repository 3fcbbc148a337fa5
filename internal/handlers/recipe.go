package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tastebook/apiserver/internal/services"
	"github.com/tastebook/apiserver/internal/store"
	"github.com/tastebook/apiserver/types"
	"go.uber.org/zap"
)

// RecipeHandler provides HTTP handlers for recipes.
type RecipeHandler struct {
	recipeService *services.RecipeService
	logger        *zap.Logger
}

// NewRecipeHandler constructs a handler with the provided dependencies.
func NewRecipeHandler(recipeService *services.RecipeService, logger *zap.Logger) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
		logger:        logger,
	}
}

// RecipeRouter registers recipe routes on the given router. Reads are
// open; mutations require an authenticated caller.
func RecipeRouter(r chi.Router, recipeService *services.RecipeService, logger *zap.Logger) {
	handler := NewRecipeHandler(recipeService, logger)

	r.Get("/", handler.ListRecipes)
	r.With(RequireAuth).Post("/", handler.CreateRecipe)
	r.Route("/{recipeID}", func(r chi.Router) {
		r.Get("/", handler.GetRecipe)
		r.With(RequireAuth).Put("/", handler.UpdateRecipe)
		r.With(RequireAuth).Delete("/", handler.DeleteRecipe)
	})
}

func (h *RecipeHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	tagIDs, err := parseTagIDs(r.URL.Query().Get("tagIds"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tagIds")
		return
	}

	summaries, err := h.recipeService.List(r.Context(), r.URL.Query().Get("q"), tagIDs)
	if err != nil {
		h.logger.Error("list recipes", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list recipes")
		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

func (h *RecipeHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := parseRecipeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recipe, err := h.recipeService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "recipe not found")
			return
		}
		h.logger.Error("fetch recipe", zap.Int("recipe_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch recipe")
		return
	}

	writeJSON(w, http.StatusOK, recipe)
}

func (h *RecipeHandler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFromContext(r.Context())

	input, err := parseRecipeInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.recipeService.Create(r.Context(), actor, input)
	if err != nil {
		h.logger.Error("create recipe", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create recipe")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"id": created.ID})
}

func (h *RecipeHandler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFromContext(r.Context())

	id, err := parseRecipeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	input, err := parseRecipeInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.recipeService.Update(r.Context(), actor, id, input); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "recipe not found")
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "not allowed to edit this recipe")
		default:
			h.logger.Error("update recipe", zap.Int("recipe_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to update recipe")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *RecipeHandler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFromContext(r.Context())

	id, err := parseRecipeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.recipeService.Delete(r.Context(), actor, id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "recipe not found")
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "not allowed to delete this recipe")
		default:
			h.logger.Error("delete recipe", zap.Int("recipe_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to delete recipe")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func parseRecipeID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "recipeID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid recipe id")
	}
	return id, nil
}

func parseRecipeInput(r *http.Request) (types.RecipeInput, error) {
	var input types.RecipeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		return types.RecipeInput{}, errors.New("invalid request")
	}

	input.Name = strings.TrimSpace(input.Name)
	if err := validate.Struct(input); err != nil {
		return types.RecipeInput{}, errors.New("invalid recipe payload")
	}

	for _, block := range input.Blocks {
		switch block.Kind {
		case types.BlockKindText:
			if strings.TrimSpace(block.Text) == "" {
				return types.RecipeInput{}, errors.New("text blocks require text")
			}
		case types.BlockKindPhoto:
			if strings.TrimSpace(block.PhotoURL) == "" {
				return types.RecipeInput{}, errors.New("photo blocks require a photo url")
			}
		}
	}

	return input, nil
}

// parseTagIDs parses a comma-separated id list, e.g. "3,17". The
// result is a set: repeated ids collapse to one entry so the tag
// filter's count comparison stays satisfiable.
func parseTagIDs(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	seen := make(map[int]bool, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id < 1 {
			return nil, errors.New("invalid tag id")
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
