package handler

import "html/template"

const pageStyle = `<style>
body { font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 20px; }
h2, h3 { color: #333; }
ul { list-style-type: none; padding: 0; }
li { background: #fff; margin: 5px 0; padding: 10px; border-left: 5px solid #3498db; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
a { text-decoration: none; color: #3498db; margin-right: 10px; }
a:hover { text-decoration: underline; }
small { color: #777; }
pre { background: #222; color: #0f0; padding: 15px; overflow-x: auto; }
textarea { width: 100%; height: 500px; font-family: monospace; font-size: 14px; }
input[type=submit] { background-color: #3498db; color: white; padding: 10px 20px; border: none; cursor: pointer; margin-top: 10px; }
input[type=submit]:hover { background-color: #2980b9; }
p a.download-all { font-weight: bold; color: #d35400; font-size: 1.1em; }
.status { font-family: monospace; background: #222; color: #0f0; padding: 6px 10px; display: inline-block; }
</style>`

var pages = template.Must(template.New("layout").Parse(`{{define "head"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>wifiscout</title>` + pageStyle + `</head><body>{{end}}
{{define "foot"}}</body></html>{{end}}

{{define "index"}}{{template "head"}}
<h2>Folders</h2>
<p class="status">{{.Status}}</p>
<ul>
{{range .Folders}}<li><a href="/list/{{.}}">{{.}}</a></li>
{{end}}</ul>
{{template "foot"}}{{end}}

{{define "list"}}{{template "head"}}
<h3>Files in: {{.Folder}}</h3>
<p><a class="download-all" href="/download_all/{{.Folder}}">Download all (ZIP)</a></p>
<ul>
{{range .Files}}<li><strong>{{.Name}}</strong> <small>{{.Size}}, {{.Age}}</small><br>
<a href="/download/{{$.Folder}}/{{.Name}}">Download</a>
<a href="/view/{{$.Folder}}/{{.Name}}">View</a>
<a href="/edit/{{$.Folder}}/{{.Name}}">Edit</a></li>
{{else}}<li>No files</li>
{{end}}</ul>
<a href="/">&larr; Back</a>
{{template "foot"}}{{end}}

{{define "view"}}{{template "head"}}
<h3>Viewing: {{.Name}}</h3>
<pre>{{.Content}}</pre>
<a href="/list/{{.Folder}}">&larr; Back</a>
{{template "foot"}}{{end}}

{{define "edit"}}{{template "head"}}
<h3>Editing: {{.Name}}</h3>
<form method="POST">
<textarea name="content">{{.Content}}</textarea><br>
<input type="submit" value="Save">
</form>
<a href="/list/{{.Folder}}">&larr; Cancel</a>
{{template "foot"}}{{end}}
`))
