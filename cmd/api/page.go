package main

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

// pageConfig carries the settings the admin page surfaces to its script.
type pageConfig struct {
	ResultsPerPage int
	AutoRefresh    bool
	DetailedLogs   bool
}

type pageData struct {
	Version        string
	Clients        int64
	Affiliates     int64
	ResultsPerPage int
	AutoRefresh    bool
	DetailedLogs   bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Version:        s.version,
		ResultsPerPage: s.pageConfig.ResultsPerPage,
		AutoRefresh:    s.pageConfig.AutoRefresh,
		DetailedLogs:   s.pageConfig.DetailedLogs,
	}

	if stats, err := s.lookupService.Stats(r.Context()); err == nil {
		data.Clients = stats.Clients
		data.Affiliates = stats.Affiliates
	} else {
		s.logger.Warn("page stats", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("render page", zap.Error(err))
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Referral Lookup</title>
{{if .AutoRefresh}}<meta http-equiv="refresh" content="300">{{end}}
<style>
body { font-family: Arial, sans-serif; margin: 20px; background: #f4f4f4; }
.panel { background: #fff; border: 1px solid #ddd; border-radius: 4px; padding: 15px; margin-bottom: 20px; }
.stats { color: #666; font-size: 13px; }
input[type=text] { padding: 6px; width: 300px; }
button { padding: 6px 14px; background: #2f6fab; color: #fff; border: 0; border-radius: 3px; cursor: pointer; }
button:hover { background: #255a8a; }
table { border-collapse: collapse; width: 100%; margin-top: 10px; }
th, td { border: 1px solid #ddd; padding: 6px 8px; text-align: left; font-size: 13px; }
th { background: #eee; }
.badge { display: inline-block; padding: 2px 6px; border-radius: 3px; font-size: 11px; color: #fff; }
.badge-ok { background: #4caf50; }
.badge-warn { background: #ff9800; }
.badge-high { background: #f44336; }
.tree ul { list-style: none; border-left: 1px dotted #999; margin-left: 10px; padding-left: 15px; }
pre { background: #f9f9f9; border: 1px solid #eee; padding: 10px; overflow: auto; font-size: 12px; }
</style>
</head>
<body>
<h2>Referral Lookup <small class="stats">v{{.Version}}</small></h2>
<p class="stats">{{.Clients}} clients, {{.Affiliates}} affiliates.
{{if .DetailedLogs}}Lookups are logged.{{end}}</p>

<div class="panel">
<h3>Search Clients</h3>
<input type="text" id="search-term" placeholder="Name, email or company (min 2 characters)">
<button onclick="searchClients()">Search</button>
<div id="search-results"></div>
</div>

<div class="panel">
<h3>Client Details</h3>
<input type="text" id="client-id" placeholder="Client ID">
<button onclick="loadDetails()">Load</button>
<div id="client-details"></div>
</div>

<div class="panel">
<h3>Conflict Check</h3>
<input type="text" id="conflict-email" placeholder="Client email address">
<button onclick="checkConflicts()">Check</button>
<div id="conflict-result"></div>
</div>

<script>
var resultsPerPage = {{.ResultsPerPage}};

function post(fields, done) {
	var body = new URLSearchParams(fields);
	fetch('/', {
		method: 'POST',
		headers: {
			'Content-Type': 'application/x-www-form-urlencoded',
			'Authorization': 'Bearer ' + (localStorage.getItem('refdesk_token') || '')
		},
		body: body.toString()
	}).then(function (r) { return r.json(); }).then(done)
	.catch(function (err) { done({status: 'error', message: String(err)}); });
}

function esc(s) {
	var div = document.createElement('div');
	div.textContent = s == null ? '' : String(s);
	return div.innerHTML;
}

function searchClients() {
	post({action: 'search_clients', term: document.getElementById('search-term').value}, function (data) {
		var el = document.getElementById('search-results');
		if (data.status !== 'success') { el.innerHTML = '<p>' + esc(data.message) + '</p>'; return; }
		if (data.count === 0) { el.innerHTML = '<p>No clients found.</p>'; return; }
		var rows = data.results.slice(0, resultsPerPage).map(function (c) {
			var ref = c.has_referrer ? esc(c.referrer_name) : 'Direct';
			var aff = c.is_affiliate ? '<span class="badge badge-ok">Affiliate</span>' : '';
			return '<tr><td>' + c.id + '</td><td>' + esc(c.name) + '</td><td>' + esc(c.email) +
				'</td><td>' + ref + '</td><td>' + aff + '</td></tr>';
		}).join('');
		el.innerHTML = '<table><tr><th>ID</th><th>Name</th><th>Email</th><th>Referred By</th><th></th></tr>' + rows + '</table>';
	});
}

function renderTree(nodes) {
	if (!nodes || nodes.length === 0) { return ''; }
	return '<ul>' + nodes.map(function (n) {
		return '<li>#' + n.id + ' ' + esc(n.name) + ' (level ' + n.level + ')' + renderTree(n.children) + '</li>';
	}).join('') + '</ul>';
}

function loadDetails() {
	var clientID = document.getElementById('client-id').value;
	post({action: 'get_referral_details', client_id: clientID}, function (data) {
		var el = document.getElementById('client-details');
		if (data.status !== 'success') { el.innerHTML = '<p>' + esc(data.message) + '</p>'; return; }
		var html = '<p><strong>' + esc(data.client.name) + '</strong> (' + esc(data.client.email) + ')</p>';
		if (data.has_referrer && data.referrer) {
			html += '<p>Referred by ' + esc(data.referrer.name) + ' (affiliate #' + data.referrer.affiliate_id + ')</p>';
		} else {
			html += '<p>Direct registration.</p>';
		}
		if (data.affiliate_stats) {
			html += '<p>Affiliate: ' + data.affiliate_stats.total_referrals + ' referrals, $' +
				data.affiliate_stats.total_commissions.toFixed(2) + ' commissions.</p>';
		}
		html += '<p>' + data.usage.total_services + ' services, ' + data.usage.total_invoices + ' invoices.</p>';
		el.innerHTML = html;
		post({action: 'get_referral_tree', client_id: clientID}, function (tree) {
			if (tree.status !== 'success') { return; }
			el.innerHTML += '<div class="tree"><h4>Referral Tree</h4>' + (renderTree(tree.tree) || '<p>No referrals.</p>') + '</div>';
		});
	});
}

function severityBadge(sev) {
	var cls = sev === 'High' ? 'badge-high' : (sev === 'Medium' ? 'badge-warn' : 'badge-ok');
	return '<span class="badge ' + cls + '">' + esc(sev) + '</span>';
}

function checkConflicts() {
	post({action: 'check_referral_conflicts', client_email: document.getElementById('conflict-email').value}, function (data) {
		var el = document.getElementById('conflict-result');
		if (data.status === 'not_found') {
			var tips = (data.suggestions || []).map(function (t) { return '<li>' + esc(t) + '</li>'; }).join('');
			el.innerHTML = '<p>' + esc(data.message) + '</p><ul>' + tips + '</ul>';
			return;
		}
		if (data.status !== 'success') { el.innerHTML = '<p>' + esc(data.message) + '</p>'; return; }
		var html = '<p>' + severityBadge(data.severity) + ' ' + esc(data.message) + '</p>';
		var rows = (data.referrers || []).map(function (r) {
			return '<tr><td>' + esc(r.type) + '</td><td>' + esc(r.name) + '</td><td>' + esc(r.email) +
				'</td><td>' + esc(r.source) + '</td><td>' + esc(r.details) + '</td></tr>';
		}).join('');
		if (rows) {
			html += '<table><tr><th>Type</th><th>Name</th><th>Email</th><th>Source</th><th>Details</th></tr>' + rows + '</table>';
		}
		var extra = (data.additional_sources || []).map(function (a) {
			var text = a.type === 'Support Tickets' ? a.count + ' ticket mentions' : esc(a.field_name) + ': ' + esc(a.value);
			return '<li>' + text + '</li>';
		}).join('');
		if (extra) { html += '<h4>Additional Evidence</h4><ul>' + extra + '</ul>'; }
		el.innerHTML = html;
	});
}
</script>
</body>
</html>
`))
