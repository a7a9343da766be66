package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "github.com/mundotango/engagement/internal/errors"
)

type createPostRequest struct {
	Body string `json:"body"`
}

type setReactionRequest struct {
	Kind string `json:"kind"`
}

type addCommentRequest struct {
	Body string `json:"body"`
}

func postIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationError("invalid post id")
	}
	return id, nil
}

func (s *Server) handleCreatePost(c echo.Context) error {
	var req createPostRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	userID, _ := currentUser(c)
	post, err := s.app.CreatePost(c.Request().Context(), userID, req.Body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

func (s *Server) handleGetPost(c echo.Context) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}

	post, err := s.app.GetPost(c.Request().Context(), postID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (s *Server) handleSetReaction(c echo.Context) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}

	var req setReactionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	userID, username := currentUser(c)
	summary, err := s.app.ReactToPost(c.Request().Context(), postID, userID, username, req.Kind)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleRemoveReaction(c echo.Context) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}

	userID, username := currentUser(c)
	summary, err := s.app.RemoveReaction(c.Request().Context(), postID, userID, username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleReactionSummary(c echo.Context) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}

	userID, _ := currentUser(c)
	summary, err := s.app.ReactionSummary(c.Request().Context(), postID, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleAddComment(c echo.Context) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}

	var req addCommentRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	userID, username := currentUser(c)
	comment, err := s.app.AddComment(c.Request().Context(), postID, userID, username, req.Body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

func (s *Server) handleListComments(c echo.Context) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return apperrors.ValidationError("invalid limit")
		}
	}

	comments, err := s.app.ListComments(c.Request().Context(), postID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comments)
}

func (s *Server) handleViewerCount(c echo.Context) error {
	postID, err := postIDParam(c)
	if err != nil {
		return err
	}

	count := s.app.ViewerCount(postID)
	return c.JSON(http.StatusOK, map[string]any{
		"postId":      postID,
		"viewerCount": count,
		"hasViewers":  count > 0,
	})
}
