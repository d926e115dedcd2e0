package forum

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/couchcryptid/member-locator/internal/domain"
)

// PageCount returns the highest page number in the directory pager, or 1.
func PageCount(doc *goquery.Document) int {
	pages := 1
	doc.Find("ul.pageNav-main li.pageNav-page a").Each(func(_ int, a *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(a.Text())); err == nil && n > pages {
			pages = n
		}
	})
	return pages
}

// ParseDirectory extracts the members listed on one directory page.
func ParseDirectory(doc *goquery.Document) []domain.Member {
	var members []domain.Member
	doc.Find("h3.contentRow-header a.username").Each(func(_ int, a *goquery.Selection) {
		uid, ok := a.Attr("data-user-id")
		if !ok || uid == "" {
			return
		}
		m := domain.Member{
			UID:  uid,
			Name: strings.TrimSpace(a.Text()),
			Href: a.AttrOr("href", ""),
		}
		loc := a.Closest("div.contentRow-main").Find("div.contentRow-lesser").First().Find("a").First()
		if loc.Length() > 0 {
			m.Location = loc.Text()
		}
		members = append(members, m)
	})
	return members
}

// profileFields maps profile field labels to member fields.
var profileFields = map[string]func(*domain.Member, string){
	"Velomobil":                      func(m *domain.Member, v string) { m.VM = v },
	"Liegerad":                       func(m *domain.Member, v string) { m.LR = v },
	"Trike":                          func(m *domain.Member, v string) { m.TR = v },
	"sonstige Fahrzeuge/Bemerkungen": func(m *domain.Member, v string) { m.Other = v },
}

// ParseDetails copies the vehicle fields of a profile "about" page into m.
func ParseDetails(doc *goquery.Document, m domain.Member) domain.Member {
	doc.Find("dl.pairs--columns").Each(func(_ int, dl *goquery.Selection) {
		label := strings.TrimSpace(dl.Find("dt").First().Text())
		set, ok := profileFields[label]
		if !ok {
			return
		}
		set(&m, strings.TrimSpace(dl.Find("dd").First().Text()))
	})
	return m
}
