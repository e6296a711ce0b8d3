package testutils

import (
	"time"

	"memeatlas/models"
)

func CreateTestLocation(label, city, region, country string) *models.LocationRecord {
	return &models.LocationRecord{
		Label:   label,
		City:    city,
		Region:  region,
		Country: country,
	}
}

func CreateTestMeme(thought string, geo models.GeoLocation, ts time.Time) *models.MemeRecord {
	return &models.MemeRecord{
		Thought:    thought,
		Location:   geo.City,
		City:       geo.City,
		Region:     geo.Region,
		Country:    geo.Country,
		MemeURL:    "https://i.imgflip.com/test.jpg",
		TemplateID: "181913649",
		IPAddress:  geo.IP,
		Timestamp:  ts,
	}
}

func ParisGeo() models.GeoLocation {
	return models.GeoLocation{IP: "203.0.113.10", City: "Paris", Region: "Île-de-France", Country: "France"}
}

func LyonGeo() models.GeoLocation {
	return models.GeoLocation{IP: "203.0.113.20", City: "Lyon", Region: "Auvergne-Rhône-Alpes", Country: "France"}
}

func BerlinGeo() models.GeoLocation {
	return models.GeoLocation{IP: "198.51.100.7", City: "Berlin", Region: "Berlin", Country: "Germany"}
}
