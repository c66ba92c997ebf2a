package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/tmercer/greatwyrm/pkg/api/middleware"
	"github.com/tmercer/greatwyrm/pkg/log"
	"github.com/tmercer/greatwyrm/pkg/repositories"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9' ]+$`)

func HandleListCharacters(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(middleware.UserContextKey).(*models.User)
		if !ok {
			log.Error("failed to get user from context")
			http.Error(w, "Failed to get user from context", http.StatusInternalServerError)
			return
		}
		characters, err := repository.ListCharacters(r.Context(), user.ID)
		if err != nil {
			log.Error("failed to list characters: %v", err)
			http.Error(w, "Failed to list characters", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(characters); err != nil {
			log.Error("failed to encode characters: %v", err)
			http.Error(w, "Failed to encode characters", http.StatusInternalServerError)
			return
		}
	}
}

func HandleCreateCharacter(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(middleware.UserContextKey).(*models.User)
		if !ok {
			log.Error("failed to get user from context")
			http.Error(w, "Failed to get user from context", http.StatusInternalServerError)
			return
		}

		name := r.FormValue("name")
		if len(name) < 1 || len(name) > 32 {
			http.Error(w, "Name must be between 1 and 32 characters", http.StatusBadRequest)
			return
		}
		if !nameRegex.MatchString(name) {
			http.Error(w, "Name cannot contain special characters", http.StatusBadRequest)
			return
		}

		character, err := repository.CreateCharacter(r.Context(), &models.Character{
			UserID:    user.ID,
			Name:      name,
			Dexterity: r.FormValue("dexterity"),
		})
		if err != nil {
			log.Error("failed to create character: %v", err)
			http.Error(w, "Failed to create character", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(character); err != nil {
			log.Error("failed to encode character: %v", err)
			http.Error(w, "Failed to encode character", http.StatusInternalServerError)
			return
		}
	}
}

func HandleDeleteCharacter(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(middleware.UserContextKey).(*models.User)
		if !ok {
			log.Error("failed to get user from context")
			http.Error(w, "Failed to get user from context", http.StatusInternalServerError)
			return
		}

		characterID := r.PathValue("characterID")
		if err := repository.DeleteCharacter(r.Context(), user.ID, characterID); err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Character not found", http.StatusNotFound)
				return
			}
			log.Error("failed to delete character: %v", err)
			http.Error(w, "Failed to delete character", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleListMonsterTypes(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		monsterTypes, err := repository.ListMonsterTypes(r.Context())
		if err != nil {
			log.Error("failed to list monster types: %v", err)
			http.Error(w, "Failed to list monster types", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(monsterTypes); err != nil {
			log.Error("failed to encode monster types: %v", err)
			http.Error(w, "Failed to encode monster types", http.StatusInternalServerError)
			return
		}
	}
}
