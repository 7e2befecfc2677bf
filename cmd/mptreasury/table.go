package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"mptreasury/internal/importer"
	"mptreasury/internal/model"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderAlbums(albums []*model.Album) string {
	rows := make([][]string, len(albums))
	for i, a := range albums {
		year := ""
		if a.ReleaseYear > 0 {
			year = strconv.Itoa(a.ReleaseYear)
		}
		rows[i] = []string{strconv.FormatInt(a.ID, 10), a.ArtistName, a.Name, year, a.Genre, a.MasterID}
	}
	return renderTable(
		[]string{"ID", "Artist", "Album", "Year", "Genre", "Master"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	)
}

func renderSongs(songs []*model.Song) string {
	rows := make([][]string, len(songs))
	for i, s := range songs {
		rows[i] = []string{strconv.FormatInt(s.ID, 10), s.Title, s.LocalPath, s.RemotePath}
	}
	return renderTable([]string{"ID", "Title", "Local path", "Remote path"}, rows, []columnAlignment{alignRight})
}

func renderReport(report *importer.Report) string {
	rows := make([][]string, len(report.Albums))
	for i, r := range report.Albums {
		name := r.RawName
		if r.RawArtist != "" {
			name = r.RawArtist + " - " + r.RawName
		}
		if name == "" {
			name = r.Path
		}
		score := ""
		if r.Score != 0 {
			score = fmt.Sprintf("%.1f", r.Score)
		}
		detail := ""
		switch {
		case r.Err != nil:
			detail = r.Err.Error()
		case r.Album != nil:
			detail = fmt.Sprintf("%s - %s (release %s)", r.Album.ArtistName, r.Album.Name, r.Album.ReleaseID)
		}
		rows[i] = []string{name, r.Outcome.String(), score, detail}
	}
	return renderTable([]string{"Folder", "Outcome", "Score", "Details"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight})
}
