package api

import (
	"encoding/binary"
	"math"
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"
)

// viewportHandler handles GET /files/{id}/viewport: resolves the
// requested x-window through viewport.Service and writes the response
// exactly as spec.md §4.8 defines — headers are authoritative, the body
// is the concatenated float64 arrays [x, ch1, ..., chK].
func (s *Server) viewportHandler(c *echo.Context) error {
	id := c.Param("id")
	xMin, err := strconv.ParseFloat(c.QueryParam("x_min"), 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid x_min"})
	}
	xMax, err := strconv.ParseFloat(c.QueryParam("x_max"), 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid x_max"})
	}
	maxPoints := 0
	if raw := c.QueryParam("max_points"); raw != "" {
		maxPoints, err = strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid max_points"})
		}
	}

	res, err := s.viewport.Query(c.Request().Context(), id, xMin, xMax, maxPoints)
	if err != nil {
		return httpError(c, err)
	}

	h := c.Response().Header()
	h.Set("X-Total-Points", strconv.FormatInt(res.TotalPoints, 10))
	h.Set("X-Returned-Points", strconv.FormatInt(res.ReturnedPoints, 10))
	h.Set("X-Full-Resolution", strconv.FormatBool(res.FullResolution))
	h.Set("X-Num-Columns", strconv.Itoa(res.NumColumns+1))
	h.Set("X-X-Min", strconv.FormatFloat(res.XMin, 'g', -1, 64))
	h.Set("X-X-Max", strconv.FormatFloat(res.XMax, 'g', -1, 64))
	h.Set("X-Channel-Names", strings.Join(res.ChannelNames, ","))
	h.Set("X-X-Type", string(res.XType))
	h.Set("X-X-Format", res.XFormat)
	c.Response().Header().Set(echo.HeaderContentType, "application/octet-stream")

	c.Response().WriteHeader(http.StatusOK)
	buf := make([]byte, 8)
	write := func(v float64) error {
		binary.NativeEndian.PutUint64(buf, math.Float64bits(v))
		_, err := c.Response().Write(buf)
		return err
	}
	for _, v := range res.X {
		if err := write(v); err != nil {
			return nil
		}
	}
	for _, ch := range res.Channels {
		for _, v := range ch {
			if err := write(v); err != nil {
				return nil
			}
		}
	}
	return nil
}
