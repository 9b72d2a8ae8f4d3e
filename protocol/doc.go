package protocol

// This package implements parsing and serialising of the commands that make
// up the Hermes wire protocol. It is the only place where protocol
// correctness is decided: the transport and client layers treat commands as
// opaque values and frames as opaque bytes.
//
// This protocol aims to be
//
// - easy to implement
// - efficient to parse
// - be human readable
//
// === General Syntax
//
// - A frame is one complete command, terminated by `\r\n`
// - Fields within a frame are separated by a single horizontal tab
// - Command names are case sensitive and always uppercase
// - PUB and MSG carry a payload: the header line declares the payload size
//   in bytes, the payload follows the header's `\r\n` and is itself
//   terminated by `\r\n`. Payload bytes are opaque, they are never decoded
//   as text and they may contain tabs or `\r\n`.
//
// === Client Commands
//
//   ```
//     SUB\t<subject>[\t<queue_group>]\t<sid>\r\n
//     UNSUB\t<sid>[\t<max_msgs>]\r\n
//     PUB\t<subject>[\t<reply_to>]\t<#bytes>\r\n<payload>\r\n
//     PING\r\n
//     PONG\r\n
//   ```
//
// - `SUB` registers interest in a subject. When a queue group is given the
//   subscription joins that group and the server load-balances deliveries
//   across the group's members instead of broadcasting. The sid is a
//   client-generated token that is unique within the connection.
// - `UNSUB` removes a subscription, or, with max_msgs, removes it after that
//   many further deliveries.
// - `PUB` publishes a payload to a subject, optionally asking replies to be
//   sent to the reply_to subject.
//
// === Server Commands
//
//   ```
//     MSG\t<subject>\t<sid>[\t<reply_to>]\t<#bytes>\r\n<payload>\r\n
//     PING\r\n
//     PONG\r\n
//   ```
//
// - `MSG` delivers a published payload to one subscription, identified by
//   the sid the client chose when subscribing.
// - Either side may PING; the other side answers with PONG. The protocol has
//   no request ids, so pongs are matched to pings in order.
//
// === Parsing policy
//
// Parsing a frame never allocates a partial result. A frame that does not
// end in `\r\n` is incomplete (a "read more bytes" signal, not a protocol
// violation); a terminated frame with a wrong tag or missing required
// fields is malformed and the connection that produced it should be
// considered desynchronized.
//
// Header fields are split on runs of whitespace. The trailing required
// field of a command is taken from the back of the token list and a single
// leftover middle token fills the optional field, which makes the grammar
// order-tolerant for optional fields without a lookahead. The flip side,
// inherited deliberately: tokens between the optional field and the final
// field are ignored. Arguments are rejected at construction time if they
// embed whitespace, so a conforming peer can never produce such a frame.
