package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"civicaid/services"
)

// StationHandler answers nearest police station queries
type StationHandler struct {
	stations *services.StationService
}

// NewStationHandler creates a new station handler
func NewStationHandler(stationService *services.StationService) *StationHandler {
	return &StationHandler{stations: stationService}
}

// NearestStations godoc
// @Summary Find nearby police stations
// @Description List police stations ordered by distance from the given point
// @Tags Stations
// @Produce json
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param limit query int false "Maximum results (default 3)"
// @Success 200 {object} map[string]interface{} "Stations with distances"
// @Failure 400 {object} map[string]interface{} "Invalid coordinates"
// @Router /stations/nearest [get]
func (h *StationHandler) NearestStations(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		return c.Status(400).JSON(fiber.Map{"error": "lat and lng query parameters are required"})
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return c.Status(400).JSON(fiber.Map{"error": "Coordinates out of range"})
	}

	limit := c.QueryInt("limit", 3)
	if limit < 1 || limit > 20 {
		limit = 3
	}

	stations, err := h.stations.Nearest(c.Context(), lat, lng, limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Station lookup failed"})
	}

	return c.JSON(fiber.Map{"stations": stations})
}
