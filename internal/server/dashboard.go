package server

// DashboardHTML is the embedded single-page dashboard.
// It shows every page's auto-refresh widget and its latest data, kept in sync
// over the WebSocket.
const DashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Autorefresh Dashboard</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, monospace;
    background: #0d1117; color: #c9d1d9; padding: 20px;
  }
  h1 { color: #58a6ff; margin-bottom: 4px; font-size: 1.5em; }
  .subtitle { color: #8b949e; margin-bottom: 20px; font-size: 0.9em; }
  .status-bar {
    display: flex; gap: 20px; margin-bottom: 20px; padding: 12px 16px;
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
  }
  .status-item { display: flex; flex-direction: column; }
  .status-label { font-size: 0.75em; color: #8b949e; text-transform: uppercase; }
  .status-value { font-size: 1.1em; font-weight: 600; }
  .status-value.connected { color: #3fb950; }
  .status-value.disconnected { color: #f85149; }
  .page-card {
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
    padding: 16px; margin-bottom: 16px;
  }
  .page-card h2 { font-size: 1.1em; color: #d2a8ff; margin-bottom: 10px; }
  .widget { display: flex; gap: 16px; align-items: center; margin-bottom: 10px; }
  .widget input[type=number] {
    width: 80px; background: #0d1117; color: #c9d1d9;
    border: 1px solid #30363d; border-radius: 4px; padding: 4px;
  }
  .widget input:disabled + span { color: #484f58; }
  button {
    background: #21262d; color: #c9d1d9; border: 1px solid #30363d;
    padding: 4px 12px; border-radius: 4px; cursor: pointer; font-size: 0.8em;
  }
  button:hover { background: #30363d; }
  .meta { font-size: 0.8em; color: #8b949e; }
  pre {
    background: #0d1117; border: 1px solid #21262d; border-radius: 4px;
    padding: 8px; max-height: 240px; overflow: auto; font-size: 0.8em;
  }
  .empty-state { text-align: center; padding: 60px 20px; color: #8b949e; }
</style>
</head>
<body>
<h1>Autorefresh Dashboard</h1>
<p class="subtitle">Periodic page refresh control</p>

<div class="status-bar">
  <div class="status-item">
    <span class="status-label">Connection</span>
    <span class="status-value disconnected" id="conn-status">Disconnected</span>
  </div>
  <div class="status-item">
    <span class="status-label">Pages</span>
    <span class="status-value" id="page-count">0</span>
  </div>
</div>

<div id="pages"><div class="empty-state">No pages configured.</div></div>

<script>
const pagesDiv = document.getElementById('pages');
const cards = {};

function card(name) {
  if (cards[name]) return cards[name];
  const empty = pagesDiv.querySelector('.empty-state');
  if (empty) empty.remove();

  const el = document.createElement('div');
  el.className = 'page-card';
  el.innerHTML =
    '<h2>' + escHtml(name) + '</h2>' +
    '<div class="widget">' +
    '<label><input type="checkbox" class="active"> <span>auto refresh</span></label>' +
    '<label>every <input type="number" class="interval" min="0" step="0.5"> s</label>' +
    '<button class="apply">Apply</button>' +
    '<button class="refresh">Refresh now</button>' +
    '</div>' +
    '<div class="meta"></div>' +
    '<pre class="data">no data yet</pre>';
  pagesDiv.appendChild(el);

  const c = {
    el: el,
    active: el.querySelector('.active'),
    interval: el.querySelector('.interval'),
    meta: el.querySelector('.meta'),
    data: el.querySelector('.data'),
  };
  el.querySelector('.apply').onclick = () => post(name, 'form', {
    active: c.active.checked,
    interval_seconds: parseFloat(c.interval.value) || 0,
  });
  el.querySelector('.refresh').onclick = () => post(name, 'refresh', {});
  c.interval.oninput = () => {
    c.active.disabled = !(parseFloat(c.interval.value) > 0);
    if (c.active.disabled) c.active.checked = false;
  };
  cards[name] = c;
  document.getElementById('page-count').textContent = Object.keys(cards).length;
  return c;
}

function render(p) {
  const c = card(p.page);
  c.active.checked = p.update_active;
  c.active.disabled = !p.active_enabled;
  c.active.title = p.reason || '';
  c.interval.value = p.update_interval / 1000;
  c.meta.textContent = 'refreshes: ' + p.refreshes +
    (p.task.next_run ? ' | next: ' + new Date(p.task.next_run).toLocaleTimeString() : '');
}

function post(name, action, body) {
  fetch('/api/pages/' + encodeURIComponent(name) + '/' + action, {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify(body),
  }).then(r => r.json()).then(p => { if (p.page) render(p); });
}

function load() {
  fetch('/api/pages').then(r => r.json()).then(list => list.forEach(render));
}

function onMessage(m) {
  const c = card(m.page);
  switch (m.type) {
  case 'active': c.active.checked = m.update_active; break;
  case 'interval': c.interval.value = m.update_interval / 1000; break;
  case 'active_enabled':
    c.active.disabled = !m.active_enabled;
    c.active.title = m.reason || '';
    break;
  case 'data':
    const d = m.data;
    c.data.textContent = d.data ? JSON.stringify(d.data, null, 2) : d.raw;
    c.meta.textContent = 'last refresh: ' + new Date(d.fetched_at).toLocaleTimeString() +
      ' | request ' + d.request_id;
    break;
  }
}

function connect() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/ws');

  ws.onopen = () => {
    document.getElementById('conn-status').textContent = 'Connected';
    document.getElementById('conn-status').className = 'status-value connected';
    load();
  };

  ws.onclose = () => {
    document.getElementById('conn-status').textContent = 'Disconnected';
    document.getElementById('conn-status').className = 'status-value disconnected';
    setTimeout(connect, 2000);
  };

  ws.onmessage = (e) => onMessage(JSON.parse(e.data));
}

function escHtml(s) {
  const d = document.createElement('div');
  d.textContent = s;
  return d.innerHTML;
}

connect();
</script>
</body>
</html>`
