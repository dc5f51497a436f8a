package model

import "time"

// Placeholders used when the showtime catalog cannot describe a showtime.
const (
	UnknownMovieTitle  = "Movie Info Unavailable"
	UnknownTheaterName = "Theater Info Unavailable"
	UnknownScreenName  = "Screen Info Unavailable"
)

// ShowtimeInfo is the read-only description of a showtime owned by the
// showtime service.  It only decorates bookings and notifications.
type ShowtimeInfo struct {
	ShowtimeID   string     `json:"id"`
	MovieID      string     `json:"movieId"`
	MovieTitle   string     `json:"movieTitle"`
	TheaterID    string     `json:"theaterId"`
	TheaterName  string     `json:"theaterName"`
	ScreenName   string     `json:"screen"`
	ShowDateTime *time.Time `json:"showDateTime"`
}

// UnknownShowtime returns the placeholder description for showtimeID.
func UnknownShowtime(showtimeID string) ShowtimeInfo {
	return ShowtimeInfo{
		ShowtimeID:  showtimeID,
		MovieTitle:  UnknownMovieTitle,
		TheaterName: UnknownTheaterName,
		ScreenName:  UnknownScreenName,
	}
}
