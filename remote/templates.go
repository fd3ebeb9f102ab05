package remote

import "html/template"

var templates = template.Must(template.New("remote").Parse(`
{{define "board"}}<table id="board" data-size="{{.Size}}" data-mode="{{.Mode}}" data-turn="{{.Turn}}" data-cell="{{.CellSize}}">
{{range $r, $row := .Rows}}<tr>{{range $c, $cell := $row}}<td class="{{$cell.Class}}" data-row="{{$r}}" data-col="{{$c}}">{{$cell.Glyph}}</td>{{end}}</tr>
{{end}}</table>
<p id="status">{{.Status}}</p>{{end}}

{{define "page"}}<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>twinsnake</title>
<style>
body { font-family: sans-serif; margin: 2em; }
#board { border-collapse: collapse; cursor: pointer; }
#board td { width: {{.CellSize}}px; height: {{.CellSize}}px; padding: 0; border: 1px solid #ddd; box-sizing: border-box; text-align: center; font-weight: bold; }
#board td.p0 { background: #9cd3ff; }
#board td.p1 { background: #ffc58f; }
#board td.target { background: #f3f3f3; }
#status { color: #555; }
</style>
</head>
<body>
<h1>twinsnake</h1>
<p id="players"><span class="p0">O {{index .Names 0}}</span> vs <span class="p1">X {{index .Names 1}}</span></p>
<button id="start">start</button>
<div id="wrap">{{template "board" .}}</div>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
async function refresh() {
  const r = await fetch("/board");
  document.getElementById("wrap").innerHTML = await r.text();
}
ws.onmessage = (ev) => {
  const env = JSON.parse(ev.data);
  if (env.t === "board" || env.t === "over") {
    refresh();
  } else if (env.t === "reject") {
    document.getElementById("status").textContent = "(" + env.p.row + "," + env.p.col + ") is not a legal target";
  }
};
document.getElementById("wrap").addEventListener("click", (ev) => {
  const rect = document.getElementById("board").getBoundingClientRect();
  ws.send(JSON.stringify({t: "click", p: {x: Math.floor(ev.clientX - rect.left), y: Math.floor(ev.clientY - rect.top)}}));
});
document.getElementById("start").addEventListener("click", () => ws.send(JSON.stringify({t: "start"})));
</script>
</body>
</html>
{{end}}
`))
