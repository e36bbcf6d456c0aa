package dashboard

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>nestprof</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
        .header { background: #2c3e50; color: white; padding: 20px; border-radius: 5px; margin-bottom: 20px; }
        .grid { display: grid; grid-template-columns: 2fr 1fr; gap: 20px; }
        .card { background: white; padding: 20px; border-radius: 5px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        pre { font-size: 12px; overflow-x: auto; }
        .events-list { max-height: 500px; overflow-y: auto; font-family: monospace; font-size: 12px; }
        .event { padding: 4px 8px; margin: 2px 0; border-left: 4px solid #3498db; background: #ecf0f1; }
        .event.stop { border-left-color: #27ae60; }
        .event.warning { border-left-color: #f39c12; }
        .status { font-size: 0.9em; color: #bdc3c7; }
        label { margin-right: 10px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>nestprof</h1>
        <p class="status" id="status">connecting...</p>
    </div>
    <div class="grid">
        <div class="card">
            <label>Depth <input id="depth" type="number" value="99" min="-1" style="width: 4em"></label>
            <pre id="report">no snapshot published yet</pre>
        </div>
        <div class="card">
            <h3>Timer events</h3>
            <div class="events-list" id="events"></div>
            <h3>Go runtime</h3>
            <pre id="runtime"></pre>
        </div>
    </div>
    <script>
        function refreshReport() {
            const depth = document.getElementById('depth').value;
            fetch('/api/report?depth=' + encodeURIComponent(depth))
                .then(r => r.text())
                .then(t => { document.getElementById('report').textContent = t; });
        }
        function refreshRuntime() {
            fetch('/api/runtime').then(r => r.json()).then(body => {
                const d = body.data;
                document.getElementById('runtime').textContent =
                    'heap alloc: ' + (d.heap_alloc / 1048576).toFixed(1) + ' MB\n' +
                    'goroutines: ' + d.num_goroutine + '\n' +
                    'gc cycles:  ' + d.num_gc;
            });
        }
        function addEvent(e) {
            const list = document.getElementById('events');
            const div = document.createElement('div');
            div.className = 'event ' + e.type;
            div.textContent = e.message;
            list.prepend(div);
            while (list.children.length > 50) { list.removeChild(list.lastChild); }
        }
        fetch('/api/events').then(r => r.json()).then(body => { (body.data || []).forEach(addEvent); });
        document.getElementById('depth').addEventListener('change', refreshReport);
        refreshReport();
        refreshRuntime();
        setInterval(refreshRuntime, 5000);

        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
        ws.onopen = () => { document.getElementById('status').textContent = 'live'; };
        ws.onclose = () => { document.getElementById('status').textContent = 'disconnected'; };
        ws.onmessage = (msg) => {
            const m = JSON.parse(msg.data);
            if (m.type === 'snapshot') { refreshReport(); }
            if (m.type === 'event') { addEvent(m.data); }
        };
    </script>
</body>
</html>
`
