package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthsync/healthsync/internal/domain"
)

func (s *Server) handleListPatients(c echo.Context) error {
	patients, err := s.store.Patients().List(c.Request().Context())
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, patients)
}

func (s *Server) handlePatientVitals(c echo.Context) error {
	patient, err := s.store.Patients().Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, patient.Vitals)
}

func (s *Server) handleListPosts(c echo.Context) error {
	posts, err := s.store.Posts().List(c.Request().Context())
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, posts)
}

func (s *Server) handleListCommunities(c echo.Context) error {
	communities, err := s.store.Communities().List(c.Request().Context())
	if err != nil {
		return apiError(c, err)
	}

	typ := c.QueryParam("type")
	location := c.QueryParam("location")
	if typ == "" && location == "" {
		return c.JSON(http.StatusOK, communities)
	}

	filtered := make([]domain.Community, 0, len(communities))
	for _, community := range communities {
		if typ != "" && community.Type != typ {
			continue
		}
		if location != "" && (community.Location == nil || *community.Location != location) {
			continue
		}
		filtered = append(filtered, community)
	}
	return c.JSON(http.StatusOK, filtered)
}

func (s *Server) handleCommunityPosts(c echo.Context) error {
	key := domain.ParseCommunityID(c.Param("id"))
	community, err := s.store.Communities().Get(c.Request().Context(), key)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, community.Posts)
}

func (s *Server) handleCommunityMessages(c echo.Context) error {
	channel := c.Param("channel")
	if !domain.ValidChannel(channel) {
		return apiError(c, domain.ErrInvalidChannel)
	}

	key := domain.ParseCommunityID(c.Param("id"))
	community, err := s.store.Communities().Get(c.Request().Context(), key)
	if err != nil {
		return apiError(c, err)
	}
	messages := community.Messages[channel]
	if messages == nil {
		messages = []string{}
	}
	return c.JSON(http.StatusOK, messages)
}

func (s *Server) handleTopDoctors(c echo.Context) error {
	groups, err := s.store.Doctors().Groups(c.Request().Context())
	if err != nil {
		return apiError(c, err)
	}
	byRegion := make(map[string][]domain.Doctor, len(groups))
	for _, g := range groups {
		byRegion[g.Region] = g.Doctors
	}
	return c.JSON(http.StatusOK, byRegion)
}

func apiError(c echo.Context, err error) error {
	de := domain.AsError(err)
	return c.JSON(de.HTTPStatus(), map[string]string{"error": de.Message})
}
