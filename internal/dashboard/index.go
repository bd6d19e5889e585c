package dashboard

// indexHTML is the single-page view. It polls the JSON API, no build step.
const indexHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Indicador Preditivo</title>
<style>
  body { font-family: monospace; background: #111; color: #ddd; margin: 2em; }
  h1 { font-size: 1.2em; }
  table { border-collapse: collapse; margin-bottom: 2em; }
  th, td { border: 1px solid #444; padding: 4px 10px; text-align: right; }
  th { background: #222; }
  .call { color: #4c4; }
  .put { color: #c44; }
</style>
</head>
<body>
<h1>Indicador Preditivo</h1>
<h2>Previsões</h2>
<table id="predictions"><thead><tr>
  <th>quando</th><th>referência</th><th>previsto</th><th>direção</th><th>confiança</th>
</tr></thead><tbody></tbody></table>
<h2>Sinais</h2>
<table id="signals"><thead><tr>
  <th>criado</th><th>direção</th><th>confiança</th><th>expira</th>
</tr></thead><tbody></tbody></table>
<h2>Modelos</h2>
<table id="reports"><thead><tr>
  <th>checkpoint</th><th>mae</th><th>rmse</th><th>r2</th>
</tr></thead><tbody></tbody></table>
<script>
function fill(id, rows) {
  const body = document.querySelector('#' + id + ' tbody');
  body.innerHTML = rows.join('');
}
function dirCell(d) {
  return '<td class="' + d.toLowerCase() + '">' + d + '</td>';
}
async function refresh() {
  try {
    const preds = await (await fetch('/api/predictions?limit=20')).json();
    fill('predictions', (preds.predictions || []).map(p =>
      '<tr><td>' + p.at + '</td><td>' + p.reference_close.toFixed(5) +
      '</td><td>' + p.predicted_close.toFixed(5) + '</td>' + dirCell(p.direction) +
      '<td>' + (p.confidence * 100).toFixed(0) + '%</td></tr>'));
    const sigs = await (await fetch('/api/signals?limit=20')).json();
    fill('signals', (sigs.signals || []).map(s =>
      '<tr><td>' + s.created_at + '</td>' + dirCell(s.direction) +
      '<td>' + (s.confidence * 100).toFixed(0) + '%</td><td>' + s.expires_at + '</td></tr>'));
    const reps = await (await fetch('/api/reports')).json();
    fill('reports', (reps.reports || []).map(r =>
      '<tr><td style="text-align:left">' + r.checkpoint + '</td><td>' + r.mae.toFixed(6) +
      '</td><td>' + r.rmse.toFixed(6) + '</td><td>' + r.r2.toFixed(4) + '</td></tr>'));
  } catch (e) { console.error(e); }
}
refresh();
setInterval(refresh, 15000);
</script>
</body>
</html>`
