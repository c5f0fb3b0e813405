// Package events defines the typed session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - connection.*
//   - user_input.*
//   - assistant_response.*
//   - assistant_playback.*
//   - turn_state.*
//   - video.*
//
// Semantics used across the package:
//
//   - Segment: append-only text piece emitted in stream order.
//   - Final: terminal immutable text for the current turn.
//   - Dropped/Discarded: a unit of work that was intentionally not delivered.
//
// connection events
//
//   - StateChanged (connection.state_changed): the session moved between
//     Disconnected, Connecting, Connected and Error.
//   - SystemMessage (connection.system_message): one human-readable line per
//     Connected or Error transition.
//
// user_input events
//
//   - UserAudioChunkDropped (user_input.audio_chunk_dropped): a capture block
//     was discarded because it could not be encoded or the outbound queue was
//     full.
//   - UserTranscriptSegment (user_input.transcript_segment): user transcript
//     fragment.
//   - UserTranscriptFinal (user_input.transcript_final): flushed user
//     utterance.
//
// assistant_response events
//
//   - AssistantTranscriptSegment (assistant_response.transcript_segment):
//     assistant transcript fragment.
//   - AssistantTranscriptFinal (assistant_response.transcript_final): flushed
//     assistant utterance.
//   - AssistantTranscriptDiscarded (assistant_response.transcript_discarded):
//     partial assistant utterance dropped on interruption.
//
// assistant_playback events
//
//   - AssistantPlaybackScheduled (assistant_playback.scheduled): buffer placed
//     on the playback clock.
//   - AssistantPlaybackEnded (assistant_playback.ended): buffer played to
//     completion.
//   - AssistantPlaybackInterrupted (assistant_playback.interrupted): all
//     buffers stopped and the clock cursor reset.
//   - AssistantPlaybackDecodeFailed (assistant_playback.decode_failed): inbound
//     payload dropped.
//
// turn_state events
//
//   - TurnCompleted (turn_state.completed): service signalled end of turn.
//   - TurnInterrupted (turn_state.interrupted): service signalled interruption.
//
// video events
//
//   - VideoFrameSent (video.frame_sent): compressed frame submitted.
//   - VideoFrameDropped (video.frame_dropped): sampler tick skipped.
package events
