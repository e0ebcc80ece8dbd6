package handler

import (
	"html/template"

	"camwatch/internal/dto"
)

const pageHeader = `<!DOCTYPE html>
<html><head>
<meta name="viewport" content="width=device-width, initial-scale=1" />
<title>Motion</title>
<style>
div a { font-size: 16px; }
.stills img { width: 100%; height: auto; }
.still { margin-top: 10px; margin-right: 10px; }
@media only screen and (min-width: 1081px) { .still { width: 45%; float: left; } }
</style>
</head><body>
<h1><a href="/motion/">Live stream</a> | <a href="/motion/still.html">Motions</a></h1>
`

const pageFooter = `</body></html>
`

var liveTemplate = template.Must(template.New("live").Parse(pageHeader + `<table width="95%">
{{- range .}}
<tr><td width="80%" align="right"><iframe src="{{.Preview}}" scrolling="no"></iframe></td>
<td width="20%" align="left">D{{.Channel}}: {{.Name}}<br>{{range .Variants}}<a href="{{.URL}}">{{.Name}}</a> {{end}}</td></tr>
{{- end}}
</table>
` + pageFooter))

var stillsTemplate = template.Must(template.New("stills").Parse(pageHeader + `<div>
{{- range .Tags}}
  <a href="/motion/still.html?tag={{.Tag}}">{{.Tag}} ({{.Count}})</a>
{{- end}}
</div>
<div class="stills">
{{- range .Stills}}
<div class="still">
<div>{{if .VideoURL}}<a href="{{.VideoURL}}" target="_blank">{{end}}<img src="/motion/{{.Filename}}" loading="lazy">{{if .VideoURL}}</a>{{end}}</div>
<div>{{.Filename}}: {{.Labels}}</div>
</div>
{{- end}}
</div>
` + pageFooter))

type streamLink struct {
	Name string
	URL  string
}

type liveRow struct {
	Channel  string
	Name     string
	Preview  string
	Variants []streamLink
}

type stillEntry struct {
	Filename string
	Labels   string
	VideoURL string
}

type stillsPage struct {
	Tags   []dto.TagCount
	Stills []stillEntry
}
