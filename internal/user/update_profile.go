package user

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/middleware"
)

// PUT /users/:id
// Accepts a partial JSON user or a multipart form with an optional avatar file.
func (h *Handler) Update(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	if !actor.CanManage(id) {
		return domain.ErrForbidden
	}

	var patch domain.UserPatch
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		patch, err = h.patchFromForm(c)
		if err != nil {
			return err
		}
	} else if err := c.Bind(&patch); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}

	u, err := h.svc.Update(c.Request().Context(), actor, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) patchFromForm(c echo.Context) (domain.UserPatch, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return domain.UserPatch{}, fmt.Errorf("%w: malformed multipart form", domain.ErrInvalidInput)
	}

	var p domain.UserPatch
	str := func(key string) *string {
		if vals, ok := form.Value[key]; ok && len(vals) > 0 {
			v := vals[0]
			return &v
		}
		return nil
	}
	p.Name = str("name")
	p.Surname = str("surname")
	p.Phone = str("phone")
	p.Email = str("email")
	p.Bio = str("bio")
	p.AvatarURL = str("avatarUrl")

	if v := str("hourlyRate"); v != nil {
		rate, err := strconv.ParseInt(*v, 10, 64)
		if err != nil {
			return domain.UserPatch{}, domain.NewValidationError("hourlyRate", "must be an integer")
		}
		p.HourlyRate = &rate
	}
	if vals, ok := form.Value["skills"]; ok {
		skills := make([]string, 0, len(vals))
		for _, v := range vals {
			for _, sk := range strings.Split(v, ",") {
				if sk = strings.TrimSpace(sk); sk != "" {
					skills = append(skills, sk)
				}
			}
		}
		p.Skills = &skills
	}
	lat, lng := str("lat"), str("lng")
	if lat != nil || lng != nil {
		if lat == nil || lng == nil {
			return domain.UserPatch{}, domain.NewValidationError("location", "lat and lng must be sent together")
		}
		la, errLat := strconv.ParseFloat(*lat, 64)
		ln, errLng := strconv.ParseFloat(*lng, 64)
		if errLat != nil || errLng != nil {
			return domain.UserPatch{}, domain.NewValidationError("location", "must be numeric")
		}
		p.Location = &domain.Location{Lat: la, Lng: ln}
	}

	if files := form.File["avatar"]; len(files) > 0 {
		if h.avatars == nil {
			return domain.UserPatch{}, domain.NewValidationError("avatar", "uploads are disabled")
		}
		url, err := h.avatars.Save(files[0])
		if err != nil {
			return domain.UserPatch{}, err
		}
		p.AvatarURL = &url
	}
	return p, nil
}
