package proxy

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"braces.dev/errtrace"
	"github.com/google/uuid"

	"github.com/zurustar/sipproxy/internal/config"
	"github.com/zurustar/sipproxy/internal/logging"
	"github.com/zurustar/sipproxy/internal/parser"
	"github.com/zurustar/sipproxy/internal/registrar"
	"github.com/zurustar/sipproxy/internal/transport"
)

// suspiciousLength is the size above which an unrecognized datagram is dumped.
// Shorter payloads are keep-alive probes and are ignored silently.
const suspiciousLength = 4

// StatelessProxy routes SIP messages using the registrar as its only state.
// Every datagram is handled on its own: nothing ties a response to the request
// it answers except the Via and From lines it carries.
type StatelessProxy struct {
	parser    parser.MessageParser
	registrar registrar.Registrar
	codes     config.PhraseLookup
	config    Config
	logger    logging.Logger
	newID     func() string
}

// NewStatelessProxy creates a proxy bound to the given registrar and reason table
func NewStatelessProxy(reg registrar.Registrar, codes config.PhraseLookup, cfg Config, logger logging.Logger) *StatelessProxy {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &StatelessProxy{
		parser:    parser.NewParser(),
		registrar: reg,
		codes:     codes,
		config:    cfg,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// request is one datagram being handled
type request struct {
	msg    *parser.SIPMessage
	sender transport.Sender
	client *net.UDPAddr
	logger logging.Logger
}

// HandleMessage parses a datagram and dispatches it by its first line.
// Only failures to send are returned; every other outcome is logged.
func (p *StatelessProxy) HandleMessage(data []byte, sender transport.Sender, addr *net.UDPAddr) error {
	logger := p.logger.With(logging.DatagramField(p.newID()), logging.AddressField("remote_addr", addr))

	msg, err := p.parser.Parse(data)
	if err != nil {
		if errors.Is(err, parser.ErrUndecodable) {
			p.dropMalformed(data, logger, err)
		}
		return nil
	}
	if !msg.IsRequest() && !msg.IsResponse() {
		p.dropMalformed(data, logger, nil)
		return nil
	}

	logger.Info(">>> " + msg.StartLine())
	logger.Debug("received message", logging.IntField("size", len(data)), logging.StringField("message", string(data)))

	r := &request{msg: msg, sender: sender, client: addr, logger: logger}
	if msg.IsResponse() {
		return errtrace.Wrap(p.processCode(r))
	}

	switch msg.GetMethod() {
	case parser.MethodREGISTER:
		return errtrace.Wrap(p.processRegister(r))
	case parser.MethodINVITE:
		return errtrace.Wrap(p.processInvite(r))
	case parser.MethodACK:
		return errtrace.Wrap(p.processAck(r))
	case parser.MethodBYE, parser.MethodCANCEL, parser.MethodOPTIONS, parser.MethodINFO,
		parser.MethodMESSAGE, parser.MethodREFER, parser.MethodPRACK, parser.MethodUPDATE:
		return errtrace.Wrap(p.processNonInvite(r))
	case parser.MethodSUBSCRIBE, parser.MethodPUBLISH, parser.MethodNOTIFY:
		// answered locally, never forwarded
		return errtrace.Wrap(p.sendResponse(r, parser.StatusOK))
	default:
		logger.Error("unrecognized request line", logging.StringField("request_line", msg.StartLine()))
		return nil
	}
}

// dropMalformed logs a datagram that is not SIP. Long payloads are hex dumped at debug.
func (p *StatelessProxy) dropMalformed(data []byte, logger logging.Logger, cause error) {
	if len(data) <= suspiciousLength {
		return
	}
	fields := []logging.Field{logging.IntField("size", len(data))}
	if cause != nil {
		fields = append(fields, logging.ErrorField(cause))
	}
	logger.Warn("dropping malformed datagram", fields...)
	for _, row := range parser.HexDump(data, " ", parser.HexDumpWidth) {
		logger.Debug(row)
	}
}

func (p *StatelessProxy) processRegister(r *request) error {
	reg := r.msg.GetRegistration()
	expires := reg.Expires()

	if reg.AOR == "" {
		r.logger.Warn("REGISTER without a user@host To URI, nothing stored")
		return errtrace.Wrap(p.sendResponse(r, parser.StatusOK))
	}

	r.logger.Info(fmt.Sprintf("From: %s - Contact: %s", reg.AOR, reg.Contact))
	r.logger.Debug("registration request",
		logging.AORField(reg.AOR),
		logging.AddressField("client", r.client),
		logging.IntField("expires", expires))

	if p.registrar.Register(reg.AOR, reg.Contact, r.sender, r.client, expires) == registrar.Registered {
		p.registrar.Dump()
	}
	return errtrace.Wrap(p.sendResponse(r, parser.StatusOK))
}

func (p *StatelessProxy) processInvite(r *request) error {
	return errtrace.Wrap(p.routeRequest(r, parser.StatusTemporarilyUnavailable))
}

func (p *StatelessProxy) processNonInvite(r *request) error {
	return errtrace.Wrap(p.routeRequest(r, parser.StatusNotAcceptable))
}

// routeRequest forwards a request from a registered origin to a valid destination.
// unavailable is the status sent when the destination is not registered or expired.
func (p *StatelessProxy) routeRequest(r *request, unavailable int) error {
	origin := r.msg.GetOrigin()
	if origin == "" {
		return errtrace.Wrap(p.sendResponse(r, parser.StatusBadRequest))
	}
	if _, ok := p.registrar.LookupRaw(origin); !ok {
		return errtrace.Wrap(p.sendResponse(r, parser.StatusBadRequest))
	}

	destination := r.msg.GetDestination()
	if destination == "" {
		return errtrace.Wrap(p.sendResponse(r, parser.StatusServerInternalError))
	}
	r.logger.Info("destination "+destination, logging.AORField(destination))

	entry, ok := p.registrar.LookupValid(destination)
	if !ok {
		return errtrace.Wrap(p.sendResponse(r, unavailable))
	}
	return errtrace.Wrap(p.forwardRequest(r, entry))
}

// processAck forwards an ACK without checking the origin or the freshness of the destination.
// ACKs that cannot be routed are dropped without a response.
func (p *StatelessProxy) processAck(r *request) error {
	destination := r.msg.GetDestination()
	if destination == "" {
		return nil
	}
	r.logger.Info("destination "+destination, logging.AORField(destination))

	entry, ok := p.registrar.LookupRaw(destination)
	if !ok {
		return nil
	}
	return errtrace.Wrap(p.forwardRequest(r, entry))
}

// processCode relays a response to the stored address of its From AOR
func (p *StatelessProxy) processCode(r *request) error {
	origin := r.msg.GetOrigin()
	if origin == "" {
		return nil
	}
	r.logger.Debug("origin "+origin, logging.AORField(origin))

	entry, ok := p.registrar.LookupRaw(origin)
	if !ok {
		return nil
	}

	lines := parser.StripRoute(r.msg.Lines)
	lines = parser.PopTopVia(lines, p.config.TopVia)
	return errtrace.Wrap(p.send(r, entry.Transport, entry.Source, r.msg.WithLines(lines)))
}

func (p *StatelessProxy) forwardRequest(r *request, entry *registrar.Entry) error {
	lines := parser.PushTopVia(r.msg.Lines, p.config.TopVia, r.client)
	lines = parser.StripRoute(lines)
	lines = parser.InsertRecordRoute(lines, p.config.RecordRoute)
	return errtrace.Wrap(p.send(r, entry.Transport, entry.Source, r.msg.WithLines(lines)))
}

// sendResponse answers the request locally on the transport it arrived on
func (p *StatelessProxy) sendResponse(r *request, code int) error {
	status := p.codes.Phrase(p.config.Language, code)
	resp := parser.BuildResponse(r.msg, status, r.client)
	return errtrace.Wrap(p.send(r, r.sender, r.client, resp))
}

func (p *StatelessProxy) send(r *request, sender transport.Sender, addr *net.UDPAddr, msg *parser.SIPMessage) error {
	if sender == nil || addr == nil {
		return errtrace.Errorf("no route for %q", msg.StartLine())
	}
	data := p.parser.Serialize(msg)
	if err := sender.SendMessage(data, addr); err != nil {
		return errtrace.Wrap(fmt.Errorf("failed to send %q to %s: %w", msg.StartLine(), addr, err))
	}
	r.logger.Info("<<< "+msg.StartLine(), logging.AddressField("to", addr))
	r.logger.Debug("sent message",
		logging.IntField("size", len(data)),
		logging.StringField("message", strings.TrimRight(string(data), parser.CRLF)))
	return nil
}

var _ ProxyEngine = (*StatelessProxy)(nil)
var _ transport.MessageHandler = (*StatelessProxy)(nil)
